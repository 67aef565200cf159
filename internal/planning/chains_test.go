package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookforge/bookforge/internal/llmgateway"
)

func constInvoker(response string) Invoker {
	return func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return response, nil
	}
}

func TestGenerateTitleReturnsFirstLine(t *testing.T) {
	title, err := GenerateTitle(context.Background(), constInvoker("The Last Lighthouse\n"), Brief{Subject: "a keeper"})
	require.NoError(t, err)
	assert.Equal(t, "The Last Lighthouse", title)
}

func TestGenerateFrameworkReturnsTrimmedText(t *testing.T) {
	framework, err := GenerateFramework(context.Background(), constInvoker("  A coastal town.\n\nElena keeps watch.  "), "The Last Lighthouse", Brief{})
	require.NoError(t, err)
	assert.Equal(t, "A coastal town.\n\nElena keeps watch.", framework)
}

func TestGenerateChaptersParsesKeyDescriptionLines(t *testing.T) {
	response := "Prólogo: the wreck\nCapítulo 1: Elena arrives\nCapítulo 2: the storm"
	entries, err := GenerateChapters(context.Background(), constInvoker(response), "framework", Brief{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ChapterEntry{Key: "Prólogo", Description: "the wreck"}, entries[0])
	assert.Equal(t, ChapterEntry{Key: "Capítulo 2", Description: "the storm"}, entries[2])
}

func TestGenerateChaptersStripsListPrefixes(t *testing.T) {
	response := "1. Capítulo 1: Elena arrives\n- Capítulo 2: the storm"
	entries, err := GenerateChapters(context.Background(), constInvoker(response), "framework", Brief{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Capítulo 1", entries[0].Key)
	assert.Equal(t, "Capítulo 2", entries[1].Key)
}

func TestGenerateChaptersRetriesOnParseFailureThenSucceeds(t *testing.T) {
	var calls int
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		calls++
		if calls == 1 {
			return "this response has no colons at all", nil
		}
		return "Capítulo 1: Elena arrives", nil
	}
	entries, err := GenerateChapters(context.Background(), invoke, "framework", Brief{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, entries, 1)
}

func TestGenerateChaptersRaisesMalformedAfterTwoFailures(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "no colons here either", nil
	}
	_, err := GenerateChapters(context.Background(), invoke, "framework", Brief{})
	require.Error(t, err)
	var malformed *llmgateway.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestGenerateChaptersPropagatesTransportErrorWithoutRetry(t *testing.T) {
	var calls int
	wantErr := errors.New("all providers exhausted")
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		calls++
		return "", wantErr
	}
	_, err := GenerateChapters(context.Background(), invoke, "framework", Brief{})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestGenerateIdeasReturnsThreeToFiveLines(t *testing.T) {
	response := "Elena finds a letter\nA storm rolls in\nShe confronts the mayor\nThe lighthouse flickers"
	ideas, err := GenerateIdeas(context.Background(), constInvoker(response), "framework", ChapterEntry{Key: "Capítulo 1"}, nil)
	require.NoError(t, err)
	assert.Len(t, ideas, 4)
	assert.Equal(t, "Elena finds a letter", ideas[0])
}

func TestGenerateIdeasCapsAtFive(t *testing.T) {
	response := "one\ntwo\nthree\nfour\nfive\nsix\nseven"
	ideas, err := GenerateIdeas(context.Background(), constInvoker(response), "framework", ChapterEntry{Key: "Capítulo 1"}, nil)
	require.NoError(t, err)
	assert.Len(t, ideas, 5)
}

func TestGenerateIdeasFailsWithFewerThanThree(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "only one idea", nil
	}
	_, err := GenerateIdeas(context.Background(), invoke, "framework", ChapterEntry{Key: "Capítulo 1"}, nil)
	require.Error(t, err)
	var malformed *llmgateway.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}
