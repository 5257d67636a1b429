package toolutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	testpayload "github.com/bakkyhq/bakky/testers/toolutil/testpayload"
)

// Logger returns a slog logger to stdout.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// PrettyJSON colorizes and indents a JSON body; anything that does not parse
// as JSON is returned untouched.
func PrettyJSON(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	var obj any
	if err := json.Unmarshal(body, &obj); err == nil {
		f := colorjson.NewFormatter()
		f.Indent = 2
		if s, err := f.Marshal(obj); err == nil {
			return s
		}
	}
	return body
}

// BuildPayload interpolates the payload placeholders and returns the bytes.
func BuildPayload(rawPayload string) ([]byte, error) {
	b, err := testpayload.Interpolate(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to interpolate payload: %w", err)
	}
	return b, nil
}

// --- Colored message printer (shared across tools) ---

// KV represents a single key-value pair to print under a section.
type KV struct {
	Key   string
	Value string
}

// MessageSection groups related key-value pairs under a titled section.
type MessageSection struct {
	Title string
	Items []KV
}

var printCounter int = 0
var printCountMutex = sync.Mutex{}

func getNextPrintCount() int {
	printCountMutex.Lock()
	defer printCountMutex.Unlock()
	printCounter++
	return printCounter
}

// PrintColoredMessage prints a colored, consistently formatted message with
// sections and body. Title and section titles are highlighted; items are
// aligned as key: value; JSON bodies are pretty-printed.
func PrintColoredMessage(title string, sections []MessageSection, body []byte) {
	black := color.New(color.FgBlack).Add(color.ResetUnderline).PrintfFunc()
	blue := color.New(color.FgHiBlue).Add(color.Underline).PrintfFunc()
	white := color.New(color.FgWhite).Add(color.ResetUnderline).PrintfFunc()

	count := getNextPrintCount()
	black("\n-------- Message %d --------\n", count)
	black(time.Now().Format(time.RFC3339) + "\n")
	if title != "" {
		blue("%s:\n", title)
	}

	for _, s := range sections {
		if s.Title != "" {
			blue("%s:\n", s.Title)
		}
		for _, kv := range s.Items {
			white("  %s: %s\n", kv.Key, kv.Value)
		}
	}

	if len(body) > 0 {
		blue("Body:\n")
		white("%s\n\n", PrettyJSON(body))
	}
}

// --- Shared CLI flag helpers ---

// AddPayloadFlag adds the common payload flag.
func AddPayloadFlag(cmd *cobra.Command, payload *string, def string) {
	if def == "" {
		def = "{json}"
	}
	cmd.Flags().StringVar(payload, "payload", def, "Payload to send (supports placeholders: {json},{sentence},{datetime},{nowtime},{counter})")
}

// AddIntervalFlag adds a common interval flag for periodic actions.
func AddIntervalFlag(cmd *cobra.Command, interval *string, def string) {
	if def == "" {
		def = "5s"
	}
	cmd.Flags().StringVar(interval, "interval", def, "Interval between actions, e.g. 2s, 500ms, 1m")
}
