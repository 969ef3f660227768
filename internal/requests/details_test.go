package requests

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDetails(t *testing.T) {
	t.Run("none without payload", func(t *testing.T) {
		p, errs := DecodeDetails(DetailNone, nil)
		assert.Nil(t, p)
		assert.Empty(t, errs)
	})

	t.Run("payload without kind", func(t *testing.T) {
		_, errs := DecodeDetails(DetailNone, json.RawMessage(`{"size":"A4"}`))
		require.Len(t, errs, 1)
		assert.Equal(t, "detail_kind", errs[0].Field)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, errs := DecodeDetails("hologram", json.RawMessage(`{}`))
		require.Len(t, errs, 1)
		assert.Equal(t, "detail_kind", errs[0].Field)
	})

	t.Run("valid print", func(t *testing.T) {
		p, errs := DecodeDetails(DetailPrint, json.RawMessage(`{"size":"A3","quantity":200,"color_mode":"color"}`))
		require.Empty(t, errs)
		pd, ok := p.(*PrintDetails)
		require.True(t, ok)
		assert.Equal(t, 200, pd.Quantity)
		assert.Equal(t, DetailPrint, p.Kind())
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, errs := DecodeDetails(DetailVideo, json.RawMessage(`{"duration_seconds":30,"aspect_ratio":"16:9","fps":60}`))
		require.Len(t, errs, 1)
		assert.Equal(t, "details", errs[0].Field)
	})

	t.Run("all field errors aggregated", func(t *testing.T) {
		_, errs := DecodeDetails(DetailDigital, json.RawMessage(`{"channel":"fax"}`))
		fields := make([]string, 0, len(errs))
		for _, e := range errs {
			fields = append(fields, e.Field)
		}
		assert.ElementsMatch(t, []string{"details.channel", "details.width_px", "details.height_px"}, fields)
	})

	t.Run("kind without payload", func(t *testing.T) {
		_, errs := DecodeDetails(DetailSignage, nil)
		require.Len(t, errs, 1)
		assert.Equal(t, "details", errs[0].Field)
	})
}

func TestEncodeDetails(t *testing.T) {
	data, err := encodeDetails(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	data, err = encodeDetails(&VideoDetails{DurationSeconds: 15, AspectRatio: "9:16"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"duration_seconds":15,"aspect_ratio":"9:16","captions":false,"platform":""}`, string(data))
}
