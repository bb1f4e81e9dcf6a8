package logging

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clio-agent/clio/internal/jsonutil"
)

// StatsRecord is one JSON line in the process-stats log.
type StatsRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	Phase      string         `json:"phase"`
	PID        int            `json:"pid"`
	RSSKB      int64          `json:"rss_kb"`
	VSZKB      int64          `json:"vsz_kb"`
	DeltaRSSKB int64          `json:"delta_rss_kb"`
	CaptureNum int            `json:"capture_num"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ProcessStats samples the process's memory footprint on demand and appends
// the sample to the daily stats log. The first capture establishes the
// baseline; later samples report rss relative to it. Implements
// agent.StatsSampler.
type ProcessStats struct {
	dir       string
	sessionID string
	log       zerolog.Logger

	mu         sync.Mutex
	baseline   int64
	captureNum int
}

func NewProcessStats(dir, sessionID string, log zerolog.Logger) *ProcessStats {
	return &ProcessStats{dir: dir, sessionID: sessionID, log: log}
}

// Capture takes one sample tagged with a phase label. Failures are logged
// and swallowed; stats must never break the agent loop.
func (p *ProcessStats) Capture(phase string) {
	rss, vsz, err := sampleMemory()
	if err != nil {
		p.log.Debug().Err(err).Str("phase", phase).Msg("process stats sample failed")
		return
	}

	p.mu.Lock()
	p.captureNum++
	if p.baseline == 0 {
		p.baseline = rss
	}
	rec := StatsRecord{
		Timestamp:  time.Now(),
		SessionID:  p.sessionID,
		Phase:      phase,
		PID:        os.Getpid(),
		RSSKB:      rss,
		VSZKB:      vsz,
		DeltaRSSKB: rss - p.baseline,
		CaptureNum: p.captureNum,
	}
	p.mu.Unlock()

	if err := p.append(rec); err != nil {
		p.log.Debug().Err(err).Str("phase", phase).Msg("process stats append failed")
	}
}

func (p *ProcessStats) append(rec StatsRecord) error {
	line, err := jsonutil.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(p.dir, "process_stats_"+rec.Timestamp.Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
