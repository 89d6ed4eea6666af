package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("analyzed %d windows", 3)
	assert.Equal(t, []string{"analyzed 3 windows"}, got)

	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, got, 1)
}

func TestEnableDebug(t *testing.T) {
	origLog, origDebug := Logf, Debugf
	defer func() { Logf, Debugf = origLog, origDebug }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	EnableDebug(false)
	Debugf("hidden")
	assert.Empty(t, got)

	EnableDebug(true)
	Debugf("window %d", 7)
	assert.Equal(t, []string{"[debug] window 7"}, got)
}
