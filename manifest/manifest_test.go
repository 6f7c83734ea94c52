package manifest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var example = `
# core services
api
sun >= 1.0

# optional integrations
hue>=1.2,<2.0
presence
pushbullet==0.1
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(example))
	assert.NoError(t, err)
	assert.Equal(t, []string{"api", "sun", "hue", "presence", "pushbullet"}, m.Names())
	assert.Equal(t, ">= 1.0", m.Requirements[1].Constraint)
	assert.Equal(t, ">=1.2,<2.0", m.Requirements[2].Constraint)
}

func TestParseInvalidSpecifier(t *testing.T) {
	_, err := Parse([]byte("api\n>=1.0\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseInvalidConstraint(t *testing.T) {
	_, err := Parse([]byte("hue>="))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

// every line is blank, a comment, or a valid specifier - anything else errors
func TestLineClassification(t *testing.T) {
	m, err := Parse([]byte("\n# comment\n  \napi\n"))
	assert.NoError(t, err)
	assert.Len(t, m.Requirements, 1)
}

// re-serializing preserves the set of (name, constraint) pairs,
// order-insensitively
func TestRoundTrip(t *testing.T) {
	m1, err := Parse([]byte(example))
	assert.NoError(t, err)
	m2, err := Parse([]byte(m1.String()))
	assert.NoError(t, err)
	assert.Equal(t, m1.Set(), m2.Set())

	shuffled := "pushbullet==0.1\nhue>=1.2,<2.0\napi\npresence\nsun >= 1.0\n"
	m3, err := Parse([]byte(shuffled))
	assert.NoError(t, err)
	assert.Equal(t, m1.Set(), m3.Set())
}

func TestCheck(t *testing.T) {
	req := Requirement{Name: "hue", Constraint: ">=1.2,<2.0"}
	assert.NoError(t, req.Check("1.2.0"))
	assert.NoError(t, req.Check("1.9"))
	assert.Error(t, req.Check("2.0"))
	assert.Error(t, req.Check("1.1"))
}

func TestCheckEquality(t *testing.T) {
	req := Requirement{Name: "pushbullet", Constraint: "==0.1"}
	assert.NoError(t, req.Check("0.1"))
	assert.Error(t, req.Check("0.2"))
}

func TestCheckPessimistic(t *testing.T) {
	req := Requirement{Name: "cast", Constraint: "~>1.1"}
	assert.NoError(t, req.Check("1.5"))
	assert.Error(t, req.Check("2.0"))
}

func TestCheckUnconstrained(t *testing.T) {
	req := Requirement{Name: "api"}
	assert.NoError(t, req.Check("3.2.1"))
}

func ExampleManifest_String() {
	m, _ := Parse([]byte("# comment\napi\nsun>=1.0\n"))
	fmt.Print(m.String())
	// Output:
	// api
	// sun>=1.0
}
