package przelewy24

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	r := ParseResponse([]byte("error=0&token=ABC123\n"))
	assert.True(t, r.Succeeded())
	assert.False(t, r.Rejected())
	token, ok := r.Token()
	assert.True(t, ok)
	assert.Equal(t, "ABC123", token)

	r = ParseResponse([]byte("error=1&errorMessage=p24_sign"))
	assert.True(t, r.Rejected())
	assert.False(t, r.Succeeded())

	r = ParseResponse([]byte("error=err00"))
	assert.False(t, r.Succeeded())
	assert.False(t, r.Rejected())

	for _, body := range []string{"", "garbage", "%zz", "token="} {
		r = ParseResponse([]byte(body))
		assert.False(t, r.Succeeded(), body)
		_, ok = r.Token()
		assert.False(t, ok, body)
	}
}
