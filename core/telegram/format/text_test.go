package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLAndRub(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;Tom &amp; Jerry&lt;/b&gt;", HTML("<b>Tom & Jerry</b>"))
	assert.Equal(t, "4 200 ₽", Rub(4200))
	assert.Equal(t, "950 ₽", Rub(950))
	assert.Equal(t, "1 000 000 ₽", Rub(1000000))
	assert.Equal(t, "-1 500 ₽", Rub(-1500))
}
