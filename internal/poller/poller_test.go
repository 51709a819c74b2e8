package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/danya02/multibooru-mirror/internal/record"
)

type fakeSource struct {
	batches []Batch
	errs    []error
	calls   int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context) (Batch, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return Batch{}, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return Batch{}, nil
}

type fakeSubmitter struct {
	submitted []record.Record
	failKeys  map[record.Key]error
}

func (f *fakeSubmitter) Submit(ctx context.Context, rec record.Record) error {
	if err := f.failKeys[rec.Key()]; err != nil {
		return err
	}
	f.submitted = append(f.submitted, rec)
	return nil
}

func comment(id int64) record.Data {
	return record.DanbooruComment{
		ID:    id,
		State: record.DanbooruCommentState{Kind: record.StateAbsent},
	}
}

type LoopSuite struct {
	suite.Suite

	source    *fakeSource
	submitter *fakeSubmitter
	loop      *Loop
	st        *state
}

func (s *LoopSuite) SetupTest() {
	s.source = &fakeSource{}
	s.submitter = &fakeSubmitter{failKeys: map[record.Key]error{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.loop = NewLoop(s.source, s.submitter, Config{}, logger)
	s.st = &state{delay: 30 * time.Second}
}

func TestLoopSuite(t *testing.T) {
	suite.Run(t, new(LoopSuite))
}

func (s *LoopSuite) TestOutOfOrderBatchProcessedAscending() {
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 3, Records: []record.Data{comment(3)}},
		{Cursor: 1, Records: []record.Data{comment(1)}},
		{Cursor: 2, Records: []record.Data{comment(2)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))

	require.Len(s.T(), s.submitter.submitted, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(s.T(), want, s.submitter.submitted[i].Key().EntityID)
	}
	assert.EqualValues(s.T(), 3, s.st.watermark)
	// more than one qualifying entry speeds the loop up
	assert.Equal(s.T(), 25*time.Second, s.st.delay)
}

func (s *LoopSuite) TestEntriesAtOrBelowWatermarkSkipped() {
	s.st.watermark = 5
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 4, Records: []record.Data{comment(4)}},
		{Cursor: 5, Records: []record.Data{comment(5)}},
		{Cursor: 6, Records: []record.Data{comment(6)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))

	require.Len(s.T(), s.submitter.submitted, 1)
	assert.EqualValues(s.T(), 6, s.submitter.submitted[0].Key().EntityID)
	assert.EqualValues(s.T(), 6, s.st.watermark)
}

func (s *LoopSuite) TestEmptyBatchBacksOffUpToCeiling() {
	for i := 0; i < 400; i++ {
		s.source.batches = append(s.source.batches, Batch{})
	}

	for i := 0; i < 400; i++ {
		require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))
	}
	assert.Equal(s.T(), 1800*time.Second, s.st.delay)
}

func (s *LoopSuite) TestSingleQualifyingEntryKeepsDelay() {
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 1, Records: []record.Data{comment(1)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))
	assert.Equal(s.T(), 30*time.Second, s.st.delay)
}

func (s *LoopSuite) TestSpeedUpClampedToFloor() {
	s.st.delay = 12 * time.Second
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 1, Records: []record.Data{comment(1)}},
		{Cursor: 2, Records: []record.Data{comment(2)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))
	assert.Equal(s.T(), 10*time.Second, s.st.delay)
}

func (s *LoopSuite) TestFetchErrorCountsAgainstBudget() {
	s.source.errs = []error{errors.New("upstream down")}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))
	assert.Equal(s.T(), 1, s.st.errorCount)
	// an erroring poll found nothing, so the delay grows
	assert.Equal(s.T(), 35*time.Second, s.st.delay)
}

func (s *LoopSuite) TestItemErrorsCountAgainstBudget() {
	s.source.batches = []Batch{{
		Entries:    []Entry{{Cursor: 1, Records: []record.Data{comment(1)}}},
		ItemErrors: 2,
	}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))
	assert.Equal(s.T(), 2, s.st.errorCount)
	require.Len(s.T(), s.submitter.submitted, 1)
}

func (s *LoopSuite) TestBudgetExhaustionIsFatal() {
	s.st.errorCount = 5
	s.source.errs = []error{errors.New("still down")}

	err := s.loop.runOnce(context.Background(), s.st)
	assert.ErrorIs(s.T(), err, ErrTooManyErrors)
}

func (s *LoopSuite) TestSubmitFailureSkipsEntryWithoutAdvancingWatermark() {
	s.submitter.failKeys[record.Key{
		TypeID:     record.TypeDanbooru,
		EntityType: record.DanbooruEntityComment,
		EntityID:   2,
	}] = errors.New("backend gone")
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 1, Records: []record.Data{comment(1)}},
		{Cursor: 2, Records: []record.Data{comment(2)}},
		{Cursor: 3, Records: []record.Data{comment(3)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))

	// entry 2 failed but later entries still go through
	require.Len(s.T(), s.submitter.submitted, 2)
	assert.EqualValues(s.T(), 3, s.st.watermark)
	assert.Equal(s.T(), 1, s.st.errorCount)
}

func (s *LoopSuite) TestResetErrorsOnSuccess() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.loop = NewLoop(s.source, s.submitter, Config{ResetErrorsOnSuccess: true}, logger)
	s.st.errorCount = 4
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 1, Records: []record.Data{comment(1)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))
	assert.Equal(s.T(), 0, s.st.errorCount)
}

func (s *LoopSuite) TestMintedIDsAreDistinct() {
	s.source.batches = []Batch{{Entries: []Entry{
		{Cursor: 1, Records: []record.Data{comment(1), comment(10)}},
	}}}

	require.NoError(s.T(), s.loop.runOnce(context.Background(), s.st))

	require.Len(s.T(), s.submitter.submitted, 2)
	assert.NotEqual(s.T(), s.submitter.submitted[0].ID, s.submitter.submitted[1].ID)
}
