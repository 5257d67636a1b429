package testpayload

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-faker/faker/v4"
)

// Row is the predictable payload structure used by the tester tools.
// faker annotates fields for automatic generation:
// https://github.com/go-faker/faker#supported-tags
type Row struct {
	ID    string  `faker:"uuid_hyphenated" json:"id"`
	Name  string  `faker:"name" json:"name"`
	Email string  `faker:"email" json:"email"`
	Score float64 `faker:"lat" json:"score"` // use lat as random float
	Time  int64   `faker:"unix_time" json:"time"`
}

func generateRow() Row {
	var r Row
	_ = faker.FakeData(&r)
	return r
}

// GenerateRandomJSON creates a JSON document with predictable structure and
// random values.
func GenerateRandomJSON() ([]byte, error) {
	return json.Marshal(generateRow())
}

// GenerateSentence generates a random sentence for tests
func GenerateSentence() string {
	return faker.Sentence()
}

func GenerateRandomDateTime() string {
	// Random Unix timestamp between 1 and 10 years ago
	timestamp := rand.Int63n(10*365*24*3600) + (time.Now().Unix() - 10*365*24*3600) // #nosec G404 -- test data generator
	return time.Unix(timestamp, 0).Format(time.RFC3339Nano)
}

func GenerateNowDateTime() string {
	return time.Now().Format(time.RFC3339Nano)
}

var counter int = 0
var counterMutex = sync.Mutex{}

func GenerateCounter() int {
	counterMutex.Lock()
	defer counterMutex.Unlock()
	counter++
	return counter
}

// Interpolate replaces the supported placeholders in str with generated
// values. When the whole string is one placeholder the generated value is
// returned directly.
func Interpolate(str string) ([]byte, error) {
	placeholders := map[string]TestPayloadType{
		"json":     TestPayloadJSON,
		"sentence": TestPayloadSentence,
		"datetime": TestPayloadDateTime,
		"nowtime":  TestPayloadNowTime,
		"counter":  TestPayloadCounter,
	}

	result := str
	for key, typ := range placeholders {
		ph := "{" + key + "}"

		if str == ph {
			return typ.Generate()
		}

		if strings.Contains(result, ph) {
			val, err := typ.Generate()
			if err != nil {
				return nil, err
			}
			result = strings.ReplaceAll(result, ph, string(val))
		}
	}
	return []byte(result), nil
}

type TestPayloadType string

const (
	TestPayloadJSON     TestPayloadType = "json"
	TestPayloadSentence TestPayloadType = "sentence"
	TestPayloadDateTime TestPayloadType = "datetime"
	TestPayloadNowTime  TestPayloadType = "nowtime"
	TestPayloadCounter  TestPayloadType = "counter"
)

func (t TestPayloadType) Generate() ([]byte, error) {
	switch t {
	case TestPayloadJSON:
		return GenerateRandomJSON()
	case TestPayloadSentence:
		return []byte(GenerateSentence()), nil
	case TestPayloadDateTime:
		return []byte(GenerateRandomDateTime()), nil
	case TestPayloadNowTime:
		return []byte(GenerateNowDateTime()), nil
	case TestPayloadCounter:
		return []byte(fmt.Sprintf("%d", GenerateCounter())), nil
	}
	return nil, fmt.Errorf("unsupported test payload type: %s", t)
}
