package deeplink

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForms(t *testing.T) {
	jsonParam := `{"action":"create_order","painting":{"id":3,"title":"Море","price":1}}`
	cases := []struct {
		name  string
		param string
		want  Link
	}{
		{name: "quick order", param: "quick_order_7", want: Link{Kind: KindQuickOrder, PaintingID: 7}},
		{name: "order", param: "order_2", want: Link{Kind: KindOrder, PaintingID: 2}},
		{name: "order with token", param: "order_2_ab12cd", want: Link{Kind: KindOrder, PaintingID: 2, Token: "ab12cd"}},
		{name: "legacy price ignored", param: "4_99999", want: Link{Kind: KindLegacy, PaintingID: 4}},
		{name: "bare id", param: "12", want: Link{Kind: KindPainting, PaintingID: 12}},
		{name: "raw json", param: jsonParam, want: Link{Kind: KindWebApp, PaintingID: 3}},
		{name: "base64url json", param: base64.RawURLEncoding.EncodeToString([]byte(jsonParam)), want: Link{Kind: KindWebApp, PaintingID: 3}},
		{name: "string id in json", param: `{"action":"create_order","painting":{"id":"5"}}`, want: Link{Kind: KindWebApp, PaintingID: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.param)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, param := range []string{"", "quick_order_x", "order_", "0", "-3", "abc", `{"action":"delete","painting":{"id":1}}`} {
		_, err := Parse(param)
		assert.ErrorIs(t, err, ErrInvalid, param)
	}
}

func TestParseWebAppData(t *testing.T) {
	link, err := ParseWebAppData(` {"action":"create_order","painting":{"id":9},"timestamp":1700000000000} `)
	require.NoError(t, err)
	assert.Equal(t, int64(9), link.PaintingID)

	_, err = ParseWebAppData("quick_order_9")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestStartParamRoundTrip(t *testing.T) {
	link, err := Parse(StartParam(11))
	require.NoError(t, err)
	assert.Equal(t, Link{Kind: KindQuickOrder, PaintingID: 11}, link)
}
