package models

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAspect(t *testing.T) {
	t.Run("Canvas sizes", func(t *testing.T) {
		w, h := Aspect9x16.Canvas()
		assert.Equal(t, [2]int{1080, 1920}, [2]int{w, h})
		w, h = Aspect16x9.Canvas()
		assert.Equal(t, [2]int{1920, 1080}, [2]int{w, h})
		w, h = Aspect4x3.Canvas()
		assert.Equal(t, [2]int{1024, 768}, [2]int{w, h})
		w, h = Aspect("1:1").Canvas()
		assert.Equal(t, [2]int{1080, 1920}, [2]int{w, h})
	})

	t.Run("Cycle wraps both ways", func(t *testing.T) {
		assert.Equal(t, Aspect16x9, Aspect9x16.Cycle(1))
		assert.Equal(t, Aspect4x3, Aspect16x9.Cycle(1))
		assert.Equal(t, Aspect9x16, Aspect4x3.Cycle(1))
		assert.Equal(t, Aspect4x3, Aspect9x16.Cycle(-1))
		for _, a := range Aspects {
			assert.Equal(t, a, a.Cycle(1).Cycle(-1))
			assert.Equal(t, a, a.Cycle(len(Aspects)))
		}
	})
}

func TestClamp_KeepsFieldsInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		s := ChatSettings{
			Alpha:         rng.Intn(1000) - 500,
			ImageScalePct: rng.Intn(1000) - 500,
			VideoScalePct: rng.Intn(1000) - 500,
			FPS:           rng.Intn(200) - 100,
			VariantCount:  rng.Intn(40) - 20,
			Aspect:        Aspect([]string{"9:16", "16:9", "4:3", "bogus"}[rng.Intn(4)]),
		}.Clamp()

		assert.True(t, s.Alpha >= AlphaMin && s.Alpha <= AlphaMax)
		assert.True(t, s.ImageScalePct >= ScaleMin && s.ImageScalePct <= ScaleMax)
		assert.True(t, s.VideoScalePct >= ScaleMin && s.VideoScalePct <= ScaleMax)
		assert.True(t, s.FPS >= FPSMin && s.FPS <= FPSMax)
		assert.True(t, s.VariantCount >= VariantCountMin && s.VariantCount <= VariantCountMax)
		assert.True(t, s.Aspect.Valid())
		assert.NotNil(t, s.ImageSources)
	}
}

func TestDecodeChatSettings(t *testing.T) {
	t.Run("Empty document is the defaults", func(t *testing.T) {
		s, err := DecodeChatSettings([]byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, DefaultChatSettings(), s)
	})

	t.Run("Explicit zero values survive", func(t *testing.T) {
		s, err := DecodeChatSettings([]byte(`{"image_scale_pct": 10, "offset_y": 0, "animate": false}`))
		require.NoError(t, err)
		assert.Equal(t, 10, s.ImageScalePct)
		assert.Equal(t, 100, s.VideoScalePct)
	})

	t.Run("Encoded defaults decode to themselves", func(t *testing.T) {
		data, err := json.Marshal(DefaultChatSettings())
		require.NoError(t, err)
		s, err := DecodeChatSettings(data)
		require.NoError(t, err)
		assert.Equal(t, DefaultChatSettings(), s)
	})

	t.Run("Malformed document", func(t *testing.T) {
		_, err := DecodeChatSettings([]byte(`{"alpha": "x"}`))
		assert.Error(t, err)
	})
}

func TestHasMedia(t *testing.T) {
	video := "v.mp4"
	empty := ""
	s := DefaultChatSettings()
	assert.False(t, s.HasMedia())

	s.VideoSource = &video
	assert.False(t, s.HasMedia())

	s.ImageSources = []string{"a.png"}
	assert.True(t, s.HasMedia())

	s.VideoSource = &empty
	assert.False(t, s.HasMedia())
}
