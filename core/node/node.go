package node

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/crypto/ed25519"
	log "github.com/sirupsen/logrus"

	"github.com/cathedral-fabric/fabric/core/capability"
	"github.com/cathedral-fabric/fabric/core/certify"
	"github.com/cathedral-fabric/fabric/core/dag"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/executor"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/policy"
	"github.com/cathedral-fabric/fabric/core/scheduler"
	"github.com/cathedral-fabric/fabric/core/store"
)

var logger = log.WithField("prefix", "node")

// NodeInput is the caller-supplied input plus output schema for one
// DAG node, keyed by the node's id.
type NodeInput struct {
	Data       []byte
	Schema     executor.Schema
	FuelBudget uint64
}

// Config configures a Coordinator's run.
type Config struct {
	RunID       ids.RunId
	StoreDir    string
	LogDir      string
	Policy      policy.Policy
	PolicyCache int
	Concurrency int
	Signer      ed25519.PrivateKey
}

// Coordinator wires C2-C8 into one run: a content store, event log,
// policy engine, DAG scheduler, tool executor, and certifier, run
// behind a ServiceRegistry the way beacon-chain/node/node.go wires its
// own services, with the same signal-driven graceful shutdown.
type Coordinator struct {
	cfg Config

	services *ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{}

	store *store.Store
	log   *eventlog.Log
	engine *policy.Engine
	exec  *executor.Executor

	eventSeqMu sync.Mutex
	eventSeq   uint64
}

// memoryCeiling bounds a single node's reported memory usage during
// dispatch (spec.md §4.6's MemoryExceeded check); it is generous
// enough that only a genuinely runaway tool trips it.
const memoryCeiling = 1 << 30

// New opens the store and event log, compiles the policy engine, and
// registers both as services, mirroring beacon-chain/node/node.go's
// New: construct the registry, register every durable dependency,
// leave scheduling/execution to Run.
func New(cfg Config, tools *executor.Registry) (*Coordinator, error) {
	registry := NewServiceRegistry()

	bs, err := store.Open(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("could not register content store service: %w", err)
	}
	if err := registry.RegisterService(storeService{bs}); err != nil {
		return nil, err
	}

	evlog, err := eventlog.Open(cfg.LogDir, cfg.RunID)
	if err != nil {
		return nil, fmt.Errorf("could not register event log service: %w", err)
	}
	if err := registry.RegisterService(logService{evlog}); err != nil {
		return nil, err
	}

	cacheSize := cfg.PolicyCache
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	engine, err := policy.NewEngine(cfg.Policy, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not compile policy engine: %w", err)
	}

	return &Coordinator{
		cfg:      cfg,
		services: registry,
		stop:     make(chan struct{}),
		store:    bs,
		log:      evlog,
		engine:   engine,
		exec:     executor.New(tools, executor.DefaultLimits(), memoryCeiling),
	}, nil
}

// Start kicks off every registered service and installs the same
// interrupt-driven shutdown beacon-chain/node/node.go's Start does:
// SIGINT/SIGTERM triggers a graceful Close; ten further signals, each
// logged, end in a panic.
func (c *Coordinator) Start() {
	c.lock.Lock()
	logger.Info("Starting cathedral-fabric node")
	c.services.StartAll()
	stop := c.stop
	c.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		logger.Info("Got interrupt, shutting down...")
		go c.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				logger.Infof("Already shutting down, interrupt %d more times to panic", i-1)
			}
		}
		panic("panic closing cathedral-fabric node")
	}()

	<-stop
}

// Close stops every registered service and releases the stop channel.
func (c *Coordinator) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.services.StopAll()
	logger.Info("Stopping cathedral-fabric node")
	select {
	case <-c.stop:
		// already closed
	default:
		close(c.stop)
	}
}

// Run executes a compiled DAG to completion: schedules nodes in
// (depth, node_id) order, dispatches each through the executor,
// appends the resulting events to the log, and settles the scheduler,
// until every node reaches a terminal state. The run itself is bracketed
// by RunCreated/RunStarted before scheduling begins and RunCompleted or
// RunFailed once it ends (spec.md §3, §8-S1), and returns a certificate
// binding the finished run's log tip, reconstructed state, and content
// root (spec.md §4.5-§4.8).
func (c *Coordinator) Run(graph *dag.DAG, inputs map[ids.NodeId]NodeInput) (certify.Certificate, error) {
	sched, err := scheduler.New(graph, c.engine, c.cfg.Concurrency, c.cfg.RunID, c.log, c.nextEventID)
	if err != nil {
		return certify.Certificate{}, err
	}

	createTick := sched.Tick()
	if _, err := c.log.Append(eventlog.New(c.nextEventID(), c.cfg.RunID, ids.NodeId{}, createTick, eventlog.RunCreated)); err != nil {
		return certify.Certificate{}, err
	}
	startTick := sched.Tick()
	if _, err := c.log.Append(eventlog.New(c.nextEventID(), c.cfg.RunID, ids.NodeId{}, startTick, eventlog.RunStarted)); err != nil {
		return certify.Certificate{}, err
	}

	runErr := c.runToCompletion(sched, graph, inputs)

	endTick := sched.Tick()
	endEvent := eventlog.New(c.nextEventID(), c.cfg.RunID, ids.NodeId{}, endTick, eventlog.RunCompleted)
	if runErr != nil {
		endEvent = eventlog.New(endEvent.EventID, c.cfg.RunID, ids.NodeId{}, endTick, eventlog.RunFailed).
			WithPayload(eventlog.EncodeFailureCause(ferrors.KindOf(runErr).String(), 0))
	}
	if _, appendErr := c.log.Append(endEvent); appendErr != nil {
		if runErr != nil {
			return certify.Certificate{}, runErr
		}
		return certify.Certificate{}, appendErr
	}
	if runErr != nil {
		return certify.Certificate{}, runErr
	}

	return certify.Certify(c.log, c.cfg.Signer)
}

// runToCompletion drives the scheduler's selection loop until every
// node reaches a terminal state, dispatching each selected node through
// the executor. A node denied by its capability dry-run settles
// straight to Failed inside the scheduler itself (spec.md §8-S3); once
// scheduling is otherwise done, that is surfaced here as a
// CapabilityDenied error so the run as a whole fails instead of
// silently completing.
func (c *Coordinator) runToCompletion(sched *scheduler.Scheduler, graph *dag.DAG, inputs map[ids.NodeId]NodeInput) error {
	for {
		id, err := sched.Next()
		if err != nil {
			if ferrors.KindOf(err) != ferrors.KindNotFound {
				return err
			}
			if sched.Done() {
				if sched.HasCapabilityDenial() {
					return ferrors.New(ferrors.KindCapabilityDenied, "node.Run: a node was denied by its capability dry-run")
				}
				return nil
			}
			return ferrors.New(ferrors.KindInternal, "node.Run: no ready node but run is not done")
		}

		if err := c.dispatchNode(sched, graph, id, inputs[id]); err != nil {
			return err
		}
	}
}

func (c *Coordinator) dispatchNode(sched *scheduler.Scheduler, graph *dag.DAG, id ids.NodeId, in NodeInput) error {
	node, ok := graph.Node(id)
	if !ok {
		return ferrors.New(ferrors.KindInternal, "node.dispatchNode: scheduled node missing from graph")
	}

	tick := sched.Tick()
	if _, err := c.log.Append(eventlog.New(c.nextEventID(), c.cfg.RunID, id, tick, eventlog.NodeStarted)); err != nil {
		return err
	}
	if err := sched.Running(id); err != nil {
		return err
	}

	invokeTick := sched.Tick()
	if _, err := c.log.Append(eventlog.New(c.nextEventID(), c.cfg.RunID, id, invokeTick, eventlog.ToolInvoked)); err != nil {
		return err
	}

	result := c.exec.Dispatch(node, in.Data, in.Schema, in.FuelBudget)

	var consumed uint64
	if result.Meter != nil {
		consumed = result.Meter.Consumed()
	}

	if result.Err != nil {
		toolKind := eventlog.ToolFailed
		if ferrors.KindOf(result.Err) == ferrors.KindTimeout {
			toolKind = eventlog.ToolTimedOut
		}
		cause := eventlog.EncodeFailureCause(ferrors.KindOf(result.Err).String(), consumed)

		toolTick := sched.Tick()
		toolEvent := eventlog.New(c.nextEventID(), c.cfg.RunID, id, toolTick, toolKind).WithPayload(cause)
		if _, err := c.log.Append(toolEvent); err != nil {
			return err
		}

		failTick := sched.Tick()
		failEvent := eventlog.New(c.nextEventID(), c.cfg.RunID, id, failTick, eventlog.NodeFailed).WithPayload(cause)
		if _, err := c.log.Append(failEvent); err != nil {
			return err
		}
		if !ferrors.IsRecoverable(result.Err) {
			return result.Err
		}
		return sched.Fail(id)
	}

	toolDoneTick := sched.Tick()
	if _, err := c.log.Append(eventlog.New(c.nextEventID(), c.cfg.RunID, id, toolDoneTick, eventlog.ToolCompleted)); err != nil {
		return err
	}

	if _, err := c.store.Put(result.Output.Data); err != nil {
		return err
	}
	blobTick := sched.Tick()
	blobEvent := eventlog.New(c.nextEventID(), c.cfg.RunID, id, blobTick, eventlog.BlobStored).WithPayload(result.Output.Data)
	if _, err := c.log.Append(blobEvent); err != nil {
		return err
	}

	completeTick := sched.Tick()
	if _, err := c.log.Append(eventlog.New(c.nextEventID(), c.cfg.RunID, id, completeTick, eventlog.NodeCompleted)); err != nil {
		return err
	}
	return sched.Complete(id)
}

// nextEventID derives a deterministic per-run event id from a
// monotonically increasing counter, the same namespaced-derivation
// approach core/ids uses throughout.
func (c *Coordinator) nextEventID() ids.EventId {
	c.eventSeqMu.Lock()
	defer c.eventSeqMu.Unlock()
	id := ids.NewEventId(c.cfg.RunID, c.eventSeq)
	c.eventSeq++
	return id
}

// CapabilityRequest mirrors policy.Request's shape so callers outside
// this package can dry-run a capability check the same way the
// scheduler does internally, without reaching into core/scheduler.
func (c *Coordinator) CapabilityRequest(id ids.NodeId, cap capability.Capability) policy.Decision {
	return c.engine.Decide(policy.Request{NodeID: id, Capability: cap, Context: policy.NewMatchContext()})
}

// Statuses reports every registered service's health.
func (c *Coordinator) Statuses() map[string]error {
	return c.services.Statuses()
}

// Services exposes the coordinator's registry so a caller can attach
// an out-of-band monitoring service (shared/prometheus) without this
// package importing net/http itself.
func (c *Coordinator) Services() *ServiceRegistry {
	return c.services
}
