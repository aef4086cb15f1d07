package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPass(t *testing.T) {
	stored := HashPass("sdfsdfsdf", NewSalt())
	assert.Len(t, stored, SaltLen+32)
	assert.True(t, CheckPass(stored, "sdfsdfsdf"))
	assert.False(t, CheckPass(stored, "sdfsdfsdg"))
	assert.False(t, CheckPass(stored[:SaltLen], ""))
	assert.False(t, CheckPass(nil, "sdfsdfsdf"))
}

func TestParseReqBody(t *testing.T) {
	var v struct{ Title string }
	assert.Nil(t, ParseReqBody(strings.NewReader(`{"Title": "x"}`), &v))
	assert.Equal(t, "x", v.Title)

	for _, body := range []string{"", "{", `{"Title": 1}`} {
		err := ParseReqBody(strings.NewReader(body), &v)
		assert.Equal(t, KindValidation, KindOf(err), body)
	}
}
