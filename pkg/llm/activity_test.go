package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockActivity struct {
	mock.Mock
}

func (m *mockActivity) SummarizeActivity(ctx context.Context, digest string) (string, error) {
	args := m.Called(ctx, digest)
	return args.String(0), args.Error(1)
}

func TestActivityDigest(t *testing.T) {
	pages := []types.Node{
		{Title: "Go", URL: "https://go.dev", BodyText: "The Go language."},
		{Title: "Rust", URL: "https://rust-lang.org", BodyText: "Another language."},
	}

	want := "Title: Go\nURL: https://go.dev\nThe Go language.\n" +
		"\n---\n" +
		"Title: Rust\nURL: https://rust-lang.org\nAnother language.\n"
	assert.Equal(t, want, ActivityDigest(pages))
}

func TestActivityDigest_Capped(t *testing.T) {
	pages := []types.Node{{Title: "Long", URL: "https://long.example", BodyText: strings.Repeat("ü", MaxActivityChars)}}

	digest := ActivityDigest(pages)
	assert.Equal(t, MaxActivityChars, len([]rune(digest)))
	assert.True(t, strings.HasPrefix(digest, "Title: Long\n"))
}

func TestSummarizeHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history", func(t *testing.T) {
		m := &mockActivity{}
		_, err := SummarizeHistory(ctx, m, nil)
		assert.ErrorIs(t, err, ErrNoPages)
		m.AssertNotCalled(t, "SummarizeActivity", mock.Anything, mock.Anything)
	})

	t.Run("one request for all pages", func(t *testing.T) {
		pages := []types.Node{{Title: "A", URL: "https://a"}, {Title: "B", URL: "https://b"}}
		m := &mockActivity{}
		m.On("SummarizeActivity", ctx, ActivityDigest(pages)).Return("read A and B", nil).Once()

		text, err := SummarizeHistory(ctx, m, pages)
		require.NoError(t, err)
		assert.Equal(t, "read A and B", text)
		m.AssertExpectations(t)
	})

	t.Run("errors pass through", func(t *testing.T) {
		m := &mockActivity{}
		m.On("SummarizeActivity", ctx, mock.Anything).Return("", ErrNoCredential)

		_, err := SummarizeHistory(ctx, m, []types.Node{{URL: "https://a"}})
		assert.ErrorIs(t, err, ErrNoCredential)
	})
}
