package writing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	appended  []string
	finalized string
	finalErr  error
	response  ContextResult
}

func (f *fakeContext) GetContextForSection(chapterNum int, position Position, key string) ContextResult {
	return f.response
}
func (f *fakeContext) AppendSection(ctx context.Context, key, sectionText string) error {
	f.appended = append(f.appended, sectionText)
	return nil
}
func (f *fakeContext) FinalizeChapter(ctx context.Context, key string) (string, error) {
	return f.finalized, f.finalErr
}

func chapterFixture(ideas ...string) Chapter {
	return Chapter{Key: "ch1", Title: "The Arrival", Number: 1, Total: 3, Ideas: ideas}
}

func TestWriteChapterDeterminesPositions(t *testing.T) {
	var positions []string
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		positions = append(positions, vars["position"])
		return "a perfectly ordinary section of prose that is long enough to not be short.", nil
	}
	ctxProvider := &fakeContext{finalized: "summary"}

	_, err := WriteChapter(context.Background(), chapterFixture("idea one", "idea two", "idea three"), invoke, ctxProvider, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "middle", "end"}, positions)
}

func TestWriteChapterAppendsEachSectionToContext(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "prose for " + vars["idea"], nil
	}
	ctxProvider := &fakeContext{finalized: "summary"}

	outcome, err := WriteChapter(context.Background(), chapterFixture("idea one", "idea two"), invoke, ctxProvider, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"prose for idea one", "prose for idea two"}, ctxProvider.appended)
	assert.Len(t, outcome.Sections, 2)
	assert.Equal(t, "summary", outcome.Summary)
}

func TestWriteChapterMarksShortSections(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "short.", nil
	}
	cfg := Config{MinSectionLength: 200}
	outcome, err := WriteChapter(context.Background(), chapterFixture("idea one"), invoke, &fakeContext{}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, outcome.Sections, 1)
	assert.True(t, outcome.Sections[0].Short)
}

func TestWriteChapterRetriesOnEmptyResponse(t *testing.T) {
	var calls int
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		calls++
		if calls == 1 {
			return "", nil
		}
		return "recovered prose", nil
	}
	outcome, err := WriteChapter(context.Background(), chapterFixture("idea one"), invoke, &fakeContext{}, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, outcome.Sections, 1)
	assert.Equal(t, "recovered prose", outcome.Sections[0].Text)
}

func TestWriteChapterFailsAfterTwoEmptyResponses(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "", nil
	}
	_, err := WriteChapter(context.Background(), chapterFixture("idea one"), invoke, &fakeContext{}, DefaultConfig(), nil)
	require.Error(t, err)
}

func TestWriteChapterReportsProgress(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "prose long enough to not be flagged as a short section of text.", nil
	}
	var reported []int
	onProgress := func(chapter Chapter, sectionIndex, sectionTotal int, short bool) {
		reported = append(reported, sectionIndex)
	}
	_, err := WriteChapter(context.Background(), chapterFixture("one", "two"), invoke, &fakeContext{}, DefaultConfig(), onProgress)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, reported)
}

func TestWriteChapterPropagatesTransportError(t *testing.T) {
	invoke := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "", assertError
	}
	_, err := WriteChapter(context.Background(), chapterFixture("one"), invoke, &fakeContext{}, DefaultConfig(), nil)
	require.Error(t, err)
}

var assertError = errFixture("transport failure")

type errFixture string

func (e errFixture) Error() string { return string(e) }
