// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package importer

import (
	"fmt"
	"io"
	"time"
)

// ProgressTracker writes a running count of stored and skipped documents.
// Export files carry no record count, so only throughput is reported.
// It is not safe for concurrent use.
type ProgressTracker struct {
	w       io.Writer
	every   int
	stored  int
	skipped int
	next    int
	start   time.Time
}

// NewProgressTracker starts a tracker that reports after every `every` stored documents.
func NewProgressTracker(w io.Writer, every int) *ProgressTracker {
	if every <= 0 {
		every = 1
	}
	return &ProgressTracker{w: w, every: every, next: every, start: time.Now()}
}

// Stored counts n documents written to the repository.
func (p *ProgressTracker) Stored(n int) {
	p.stored += n
	if p.stored >= p.next {
		p.report()
		for p.next <= p.stored {
			p.next += p.every
		}
	}
}

// Skipped counts one record left out of the import.
func (p *ProgressTracker) Skipped() {
	p.skipped++
}

// Counts returns the stored and skipped totals.
func (p *ProgressTracker) Counts() (stored, skipped int) {
	return p.stored, p.skipped
}

// Done writes the final progress line and returns the time since the tracker started.
func (p *ProgressTracker) Done() time.Duration {
	p.report()
	fmt.Fprintln(p.w)
	return time.Since(p.start)
}

func (p *ProgressTracker) report() {
	rate := 0.0
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(p.stored) / secs
	}
	fmt.Fprintf(p.w, "\rStored %d documents, skipped %d (%.1f documents/s)", p.stored, p.skipped, rate)
}
