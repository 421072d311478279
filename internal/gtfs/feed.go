package gtfs

import (
	"context"
	"sync"
	"time"

	gtfsstatic "github.com/jamespfennell/gtfs"
)

// FeedSource serves timetables from a static GTFS zip. The archive is
// parsed on first use and kept in memory.
type FeedSource struct {
	path string

	mu     sync.Mutex
	static *gtfsstatic.Static
}

func NewFeedSource(path string) *FeedSource {
	return &FeedSource{path: path}
}

// Timetables returns the trips of the feed that run on day.
func (f *FeedSource) Timetables(_ context.Context, day time.Time) ([]Timetable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.static == nil {
		static, err := LoadStatic(f.path)
		if err != nil {
			return nil, err
		}
		f.static = static
	}
	return FromStatic(f.static, day), nil
}
