package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Apply_Masks_Configured_Words(t *testing.T) {
	req := require.New(t)
	masker, err := NewMasker([]string{"tonto", "whatsapp"}, '*')
	req.NoError(err)

	req.Equal("eres un *****", masker.Apply("eres un tonto"))
	req.Equal("pasame tu ********", masker.Apply("pasame tu WhatsApp"))
	req.Equal("todo bien por aca", masker.Apply("todo bien por aca"))
}

func Test_Apply_Sees_Through_Punctuation_And_Spacing(t *testing.T) {
	req := require.New(t)
	masker, err := NewMasker([]string{"tonto"}, '*')
	req.NoError(err)

	// The whole disguised span is masked, separators included.
	req.Equal("*********", masker.Apply("t.o.n.t.o"))
	req.Equal("*********", masker.Apply("t o n t o"))
}

func Test_Apply_Without_Words_Is_A_Passthrough(t *testing.T) {
	req := require.New(t)
	masker, err := NewMasker(nil, '*')
	req.NoError(err)

	req.Equal("anything goes", masker.Apply("anything goes"))
	req.Equal("", masker.Apply(""))
}
