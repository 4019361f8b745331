package fixtures

const MaxEntries = 500

const MaxBytes = 1 << 20

var DefaultLimits = map[string]int{
	"entries": MaxEntries,
	"bytes":   MaxBytes,
}
