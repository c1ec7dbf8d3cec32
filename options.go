package asyncfs

import "runtime"

// Backpressure selects what a lane does when its bounded job queue is full
// and a new job is submitted (spec §4.C3).
type Backpressure int

const (
	// Suspend parks the caller in a FIFO pending-admission queue until a
	// slot frees up, the deadline (if any) expires, or the caller's context
	// is cancelled.
	Suspend Backpressure = iota
	// Throw fails the caller immediately with ErrQueueFull.
	Throw
)

func (b Backpressure) String() string {
	switch b {
	case Suspend:
		return "Suspend"
	case Throw:
		return "Throw"
	default:
		return "Backpressure(?)"
	}
}

// laneConfig holds resolved lane configuration. Grounded on
// eventloop/options.go's loopOptions struct.
type laneConfig struct {
	workers      int
	queueLimit   int
	backpressure Backpressure
}

// LaneOption configures a blocking lane. Grounded on eventloop/options.go's
// LoopOption interface + loopOptionImpl pattern.
type LaneOption interface {
	applyLane(*laneConfig)
}

type laneOptionFunc func(*laneConfig)

func (f laneOptionFunc) applyLane(c *laneConfig) { f(c) }

// WithWorkers sets the number of dedicated OS threads the lane spawns
// (lazily, on first use). Defaults to runtime.NumCPU().
func WithWorkers(n int) LaneOption {
	return laneOptionFunc(func(c *laneConfig) {
		if n > 0 {
			c.workers = n
		}
	})
}

// WithQueueLimit sets the bounded job queue's capacity. Defaults to 256.
func WithQueueLimit(n int) LaneOption {
	return laneOptionFunc(func(c *laneConfig) {
		if n > 0 {
			c.queueLimit = n
		}
	})
}

// WithBackpressure selects the lane's behavior when the queue is full.
// Defaults to Suspend.
func WithBackpressure(b Backpressure) LaneOption {
	return laneOptionFunc(func(c *laneConfig) {
		c.backpressure = b
	})
}

func resolveLaneConfig(opts []LaneOption) *laneConfig {
	c := &laneConfig{
		workers:      runtime.NumCPU(),
		queueLimit:   256,
		backpressure: Suspend,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyLane(c)
	}
	return c
}

// executorConfig holds resolved executor configuration.
type executorConfig struct {
	lane []LaneOption
}

// ExecutorOption configures an Executor.
type ExecutorOption interface {
	applyExecutor(*executorConfig)
}

type executorOptionFunc func(*executorConfig)

func (f executorOptionFunc) applyExecutor(c *executorConfig) { f(c) }

// WithLaneOptions forwards LaneOption values to the executor's blocking lane.
func WithLaneOptions(opts ...LaneOption) ExecutorOption {
	return executorOptionFunc(func(c *executorConfig) {
		c.lane = append(c.lane, opts...)
	})
}

func resolveExecutorConfig(opts []ExecutorOption) *executorConfig {
	c := &executorConfig{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyExecutor(c)
	}
	return c
}

// UndecodableDecision is returned by an OnUndecodable callback (spec
// §4.C9 Options) to decide the disposition of a directory entry whose name
// cannot be represented as a path.
//
// Emit behaves identically to Skip: per spec.md §9 ("Undecodable-entry Emit
// semantics"), Go's os-based directory entries are always representable as
// a string (Go strings are arbitrary byte sequences), so in practice an
// "undecodable" name only arises from a zero-length or otherwise unusable
// entry, from which no path can be constructed regardless of Emit/Skip.
type UndecodableDecision int

const (
	// SkipUndecodable silently omits the entry and continues the walk.
	SkipUndecodable UndecodableDecision = iota
	// EmitUndecodable is accepted for API symmetry with the source design
	// but is handled identically to SkipUndecodable (see type doc).
	EmitUndecodable
	// StopAndThrowUndecodable aborts the walk, surfacing ErrUndecodableEntry
	// via the completion authority's first-error-wins protocol.
	StopAndThrowUndecodable
)

// walkConfig holds resolved recursive-walk configuration (spec §4.C9
// "Options").
type walkConfig struct {
	maxDepth        int // <0 means unbounded
	followSymlinks  bool
	includeHidden   bool
	maxConcurrency  int
	onUndecodable   func(name string) UndecodableDecision
	batchSize       int
}

// WalkOption configures a recursive walk.
type WalkOption interface {
	applyWalk(*walkConfig)
}

type walkOptionFunc func(*walkConfig)

func (f walkOptionFunc) applyWalk(c *walkConfig) { f(c) }

// WithMaxDepth bounds recursion depth below the root (root is depth 0).
// A negative value (the default) means unbounded.
func WithMaxDepth(depth int) WalkOption {
	return walkOptionFunc(func(c *walkConfig) { c.maxDepth = depth })
}

// WithFollowSymlinks enables symlink-following with inode-based cycle
// detection (spec §4.C9 step 2, §8 property 6).
func WithFollowSymlinks(follow bool) WalkOption {
	return walkOptionFunc(func(c *walkConfig) { c.followSymlinks = follow })
}

// WithIncludeHidden controls whether dotfile-prefixed entries are emitted.
func WithIncludeHidden(include bool) WalkOption {
	return walkOptionFunc(func(c *walkConfig) { c.includeHidden = include })
}

// WithMaxConcurrency bounds the number of directories processed
// concurrently (spec §8 property 7). Must be >= 1.
func WithMaxConcurrency(n int) WalkOption {
	return walkOptionFunc(func(c *walkConfig) {
		if n >= 1 {
			c.maxConcurrency = n
		}
	})
}

// WithOnUndecodable installs the disposition callback for undecodable entry
// names (spec §4.C9 Options, §9).
func WithOnUndecodable(fn func(name string) UndecodableDecision) WalkOption {
	return walkOptionFunc(func(c *walkConfig) { c.onUndecodable = fn })
}

// WithBatchSize overrides the per-lane-call directory read batch size
// (spec §4.C9 step 4; default 64).
func WithBatchSize(n int) WalkOption {
	return walkOptionFunc(func(c *walkConfig) {
		if n > 0 {
			c.batchSize = n
		}
	})
}

func resolveWalkConfig(opts []WalkOption) *walkConfig {
	c := &walkConfig{
		maxDepth:       -1,
		followSymlinks: false,
		includeHidden:  false,
		maxConcurrency: 1,
		batchSize:      64,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyWalk(c)
	}
	if c.onUndecodable == nil {
		c.onUndecodable = func(string) UndecodableDecision { return SkipUndecodable }
	}
	return c
}

// Durability selects the fsync policy for a streaming write's commit phase
// (spec §4.C11 "Durability options").
type Durability int

const (
	// DurabilityNone skips all fsyncs.
	DurabilityNone Durability = iota
	// DurabilityData fsyncs the file's data only (fdatasync).
	DurabilityData
	// DurabilityDataAndMetadata fsyncs the file and its containing
	// directory.
	DurabilityDataAndMetadata
)

// CommitMode selects how a streaming write's commit phase finalizes the
// destination (spec §6 "Streaming write options").
type CommitMode int

const (
	// CommitAtomic writes to a sibling temp file and renames it over the
	// destination on commit (spec §4.C11 step 1/3).
	CommitAtomic CommitMode = iota
	// CommitDirect writes straight to the destination path; commit is a
	// no-op beyond the configured fsyncs.
	CommitDirect
)

// writeConfig holds resolved streaming-write configuration.
type writeConfig struct {
	commit       CommitMode
	tempDir      string
	tempSuffix   string
	durability   Durability
	expectedSize int64 // <=0 means unset
}

// WriteOption configures a streaming write.
type WriteOption interface {
	applyWrite(*writeConfig)
}

type writeOptionFunc func(*writeConfig)

func (f writeOptionFunc) applyWrite(c *writeConfig) { f(c) }

// WithCommitMode selects atomic (default) or direct commit.
func WithCommitMode(mode CommitMode) WriteOption {
	return writeOptionFunc(func(c *writeConfig) { c.commit = mode })
}

// WithTempDir overrides the directory atomic commits stage their temp file
// in (defaults to the destination's own directory, required for the
// rename to stay on one filesystem).
func WithTempDir(dir string) WriteOption {
	return writeOptionFunc(func(c *writeConfig) { c.tempDir = dir })
}

// WithTempSuffix overrides the randomized temp file suffix pattern.
func WithTempSuffix(suffix string) WriteOption {
	return writeOptionFunc(func(c *writeConfig) { c.tempSuffix = suffix })
}

// WithDurability selects the commit-phase fsync policy. Defaults to
// DurabilityDataAndMetadata.
func WithDurability(d Durability) WriteOption {
	return writeOptionFunc(func(c *writeConfig) { c.durability = d })
}

// WithExpectedSize hints the final file size, which may be used to
// pre-allocate the temp file.
func WithExpectedSize(n int64) WriteOption {
	return writeOptionFunc(func(c *writeConfig) { c.expectedSize = n })
}

func resolveWriteConfig(opts []WriteOption) *writeConfig {
	c := &writeConfig{
		commit:     CommitAtomic,
		tempSuffix: ".tmp-*",
		durability: DurabilityDataAndMetadata,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyWrite(c)
	}
	return c
}
