package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PollyDrive/capsim/sim/repository"
	"github.com/PollyDrive/capsim/sim/trace"
)

// decisionTickIntervalMin is the recurring interval at which an agent
// re-evaluates DecideAction. Not configurable via Config: it paces the
// engine's own decision cadence rather than a domain tunable from §6.1.
const decisionTickIntervalMin = 15.0

// Simulator is the engine described in §5: sole owner of the event queue,
// the agent/trend population, and the RNG. It implements EngineState so
// ActionExecutor and InfluenceProcessor can reach this state without a
// back-pointer stored on any domain object.
type Simulator struct {
	run   *Run
	cfg   Config
	st    *StaticTables
	clock Clock

	queue *EventQueue
	rng   *PartitionedRNG

	ledger         *trace.Ledger
	historyFlushed int
	auditFlushed   int
	tickCount      int64

	repo      repository.Repository
	metrics   *Metrics
	executor  *ActionExecutor
	influence *InfluenceProcessor

	agents     map[uuid.UUID]*Agent
	agentOrder []uuid.UUID
	trends     map[uuid.UUID]*Trend
	trendOrder []uuid.UUID

	log *logrus.Entry
}

// Bootstrap implements §4.1: it refuses to start a second concurrent run
// (I5), persists the new Run, loads or defaults the static tables, seeds the
// population, and schedules the initial system and agent-decision events.
func Bootstrap(ctx context.Context, cfg Config, repo repository.Repository, clock Clock) (*Simulator, error) {
	active, err := repo.GetActiveRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if len(active) > 0 {
		return nil, ErrActiveSimulationExists
	}

	st, err := loadOrDefaultStaticTables(ctx, repo)
	if err != nil {
		return nil, err
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}

	run := NewRun(cfg)
	configJSON, err := repository.MarshalConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: marshal config: %w", err)
	}
	if err := repo.CreateRun(ctx, repository.RunRecord{
		ID:            run.ID,
		Status:        string(run.Status),
		StartWallTime: run.StartWallTime,
		HorizonMin:    run.HorizonMin,
		AgentCount:    run.AgentCount,
		Seed:          run.Seed,
		ConfigJSON:    configJSON,
	}); err != nil {
		return nil, fmt.Errorf("bootstrap: persist run: %w", err)
	}

	s := &Simulator{
		run:       run,
		cfg:       cfg,
		st:        st,
		clock:     clock,
		queue:     NewEventQueue(cfg.MaxQueueSize),
		rng:       NewPartitionedRNG(cfg.Seed),
		ledger:    trace.NewLedger(),
		repo:      repo,
		metrics:   NewMetrics(),
		executor:  NewActionExecutor(),
		influence: NewInfluenceProcessor(),
		agents:    make(map[uuid.UUID]*Agent),
		trends:    make(map[uuid.UUID]*Trend),
		log:       logrus.WithField("component", "simulator").WithField("sim_id", run.ID),
	}

	bootRng := s.rng.ForSubsystem(SubsystemBootstrap)
	s.spawnAgents(bootRng)
	s.persistAgentsSnapshot(ctx)

	s.scheduleSystemEvents()
	s.scheduleInitialTicks(bootRng)

	if err := repo.UpdateRunStatus(ctx, run.ID, string(RunRunning)); err != nil {
		return nil, fmt.Errorf("bootstrap: activate run: %w", err)
	}
	run.Status = RunRunning
	s.metrics.SetSimulationsActive(1)
	return s, nil
}

func loadOrDefaultStaticTables(ctx context.Context, repo repository.Repository) (*StaticTables, error) {
	doc, err := repo.LoadStaticTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load static tables: %w", err)
	}
	if len(doc.Affinity) == 0 {
		return DefaultStaticTables(), nil
	}
	return staticTablesFromDoc(doc), nil
}

// staticTablesFromDoc converts the repository's storage-shaped document into
// the engine's StaticTables, filling action-effect and cooldown fields (not
// part of the persisted document) from the built-in defaults.
func staticTablesFromDoc(doc repository.StaticTablesDoc) *StaticTables {
	defaults := DefaultStaticTables()
	st := &StaticTables{
		Affinity:           map[Profession]map[Topic]int{},
		ProfessionRanges:    map[Profession]ProfessionAttributes{},
		InterestRanges:      map[Profession]map[InterestCategory]AttributeRange{},
		TopicInterest:       map[Topic]InterestCategory{},
		ShopWeights:         map[Profession]float64{},
		ActionEffects:       defaults.ActionEffects,
		PostCooldownMin:     defaults.PostCooldownMin,
		SelfDevCooldownMin:  defaults.SelfDevCooldownMin,
		MaxPurchasesDay:     defaults.MaxPurchasesDay,
	}
	for p, row := range doc.Affinity {
		converted := map[Topic]int{}
		for t, v := range row {
			converted[Topic(t)] = v
		}
		st.Affinity[Profession(p)] = converted
	}
	for p, pr := range doc.ProfessionRanges {
		st.ProfessionRanges[Profession(p)] = ProfessionAttributes{
			FinancialCapability: AttributeRange{Min: pr.FinancialCapability[0], Max: pr.FinancialCapability[1]},
			TrendReceptivity:    AttributeRange{Min: pr.TrendReceptivity[0], Max: pr.TrendReceptivity[1]},
			SocialStatus:        AttributeRange{Min: pr.SocialStatus[0], Max: pr.SocialStatus[1]},
			EnergyLevel:         AttributeRange{Min: pr.EnergyLevel[0], Max: pr.EnergyLevel[1]},
			TimeBudget:          AttributeRange{Min: pr.TimeBudget[0], Max: pr.TimeBudget[1]},
		}
	}
	for p, row := range doc.InterestRanges {
		converted := map[InterestCategory]AttributeRange{}
		for ic, v := range row {
			converted[InterestCategory(ic)] = AttributeRange{Min: v[0], Max: v[1]}
		}
		st.InterestRanges[Profession(p)] = converted
	}
	for t, ic := range doc.TopicInterest {
		st.TopicInterest[Topic(t)] = InterestCategory(ic)
	}
	for p, w := range doc.ShopWeights {
		st.ShopWeights[Profession(p)] = w
	}
	return st
}

// spawnAgents draws cfg.AgentCount agents, uniformly over professions, with
// scalar attributes and interests drawn uniformly from the profession's
// StaticTables ranges (§4.1).
func (s *Simulator) spawnAgents(rng *rand.Rand) {
	for i := 0; i < s.cfg.AgentCount; i++ {
		profession := AllProfessions[rng.Intn(len(AllProfessions))]
		agent := NewAgent(profession)

		ranges := s.st.ProfessionRanges[profession]
		agent.FinancialCapability = drawUniform(rng, ranges.FinancialCapability)
		agent.TrendReceptivity = drawUniform(rng, ranges.TrendReceptivity)
		agent.SocialStatus = drawUniform(rng, ranges.SocialStatus)
		agent.EnergyLevel = drawUniform(rng, ranges.EnergyLevel)
		agent.TimeBudget = quantizeHalf(drawUniform(rng, ranges.TimeBudget))

		for _, ic := range AllInterests {
			agent.Interests[ic] = drawUniform(rng, s.st.InterestRanges[profession][ic])
		}

		s.agents[agent.ID] = agent
		s.agentOrder = append(s.agentOrder, agent.ID)
	}
}

func drawUniform(rng *rand.Rand, r AttributeRange) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// scheduleSystemEvents pushes the recurring system events' first occurrence.
func (s *Simulator) scheduleSystemEvents() {
	s.pushSystem(NewEvent(s.run.ID, minutesPerDay, EventDailyReset, nil))
	s.pushSystem(NewEvent(s.run.ID, float64(s.cfg.EnergyRecoveryIntervalMin), EventEnergyRecovery, nil))
	s.pushSystem(NewEvent(s.run.ID, minutesPerDay, EventSaveDailyTrend, nil))
}

func (s *Simulator) pushSystem(ev *Event) {
	if err := s.queue.Push(ev); err != nil {
		s.log.WithError(err).Errorf("failed to schedule system event %s at bootstrap", ev.Kind)
	}
}

// scheduleInitialTicks staggers every agent's first AGENT_TICK across
// [0, decisionTickIntervalMin) so the population doesn't decide in lockstep.
func (s *Simulator) scheduleInitialTicks(rng *rand.Rand) {
	for _, id := range s.agentOrder {
		ts := rng.Float64() * decisionTickIntervalMin
		s.pushSystem(NewEvent(s.run.ID, ts, EventAgentTick, AgentTickPayload{AgentID: id}))
	}
}

// Run drives the main dispatch loop (§5) until the horizon is reached or ctx
// is cancelled, then shuts down and returns.
func (s *Simulator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(RunForceStopped)
		default:
		}

		ts, ok := s.queue.PeekTimestamp()
		if !ok || ts > float64(s.cfg.HorizonMin) {
			return s.shutdown(RunCompleted)
		}

		s.clock.WaitUntil(ctx, ts)
		ev := s.queue.Pop()
		if ev == nil {
			continue
		}
		s.clock.Advance(ev.Timestamp)
		s.dispatch(ctx, ev)
		s.metrics.SetQueueLength(s.queue.Size())

		if err := s.maybeFlush(ctx); err != nil {
			s.log.WithError(err).Warn("batch flush reported an error")
		}
	}
}

// dispatch routes one popped Event to its handler, times the handling, and
// records an audit row regardless of outcome.
func (s *Simulator) dispatch(ctx context.Context, ev *Event) {
	start := time.Now()
	var err error

	switch ev.Kind {
	case EventPublishPost:
		err = s.executor.ExecutePost(s, ev.Payload.(PublishPostPayload))
	case EventSelfDev:
		err = s.executor.ExecuteSelfDev(s, ev.Payload.(SelfDevPayload))
	case EventPurchaseL1, EventPurchaseL2, EventPurchaseL3:
		err = s.executor.ExecutePurchase(s, ev.Payload.(PurchasePayload))
	case EventTrendInfluence:
		err = s.influence.Process(s, ev.Payload.(TrendInfluencePayload))
	case EventAgentTick:
		s.handleAgentTick(ev.Payload.(AgentTickPayload))
	case EventDailyReset:
		s.handleDailyReset()
	case EventEnergyRecovery:
		s.handleEnergyRecovery()
	case EventSaveDailyTrend:
		s.handleSaveDailyTrend(ctx)
	case EventLaw, EventWeather:
		s.log.Debugf("%s has no registered handler yet, skipping", ev.Kind)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEventKind, ev.Kind)
	}
	if err != nil {
		s.log.WithError(err).Warnf("%s handling reported an error", ev.Kind)
	}

	duration := time.Since(start)
	s.metrics.ObserveEventLatency(duration)
	s.metrics.LogEvent(ev, duration, "event dispatched")
	s.ledger.RecordAudit(trace.EventAuditRecord{
		EventID:      ev.ID,
		SimulationID: ev.SimulationID,
		Kind:         string(ev.Kind),
		Timestamp:    ev.Timestamp,
		DurationMs:   float64(duration) / float64(time.Millisecond),
	})
}

// handleAgentTick evaluates one agent's DecideAction and, on a chosen
// candidate, enqueues the corresponding concrete event before rescheduling
// its own next tick decisionTickIntervalMin later.
func (s *Simulator) handleAgentTick(payload AgentTickPayload) {
	agent, ok := s.agents[payload.AgentID]
	if !ok {
		return
	}
	now := s.clock.Now()
	trend := s.contextTrendFor(agent)
	rng := s.rng.ForSubsystem(SubsystemDecision)

	if choice, chosen := agent.DecideAction(now, s.st, trend, s.cfg.DecideScoreThreshold, rng); chosen {
		s.enqueueChosenAction(agent, choice, trend)
	}

	next := NewEvent(s.run.ID, now+decisionTickIntervalMin, EventAgentTick, AgentTickPayload{AgentID: agent.ID})
	if err := s.queue.Push(next); err != nil {
		s.log.WithError(err).Warnf("failed to reschedule agent tick for %s", agent.ID)
	}
}

// contextTrendFor returns the most recently created active trend whose
// topic the agent's profession has any affinity for, or nil if none
// qualifies. Used to give DecideAction's post/purchase scoring a concrete
// trend to react to.
func (s *Simulator) contextTrendFor(agent *Agent) *Trend {
	for i := len(s.trendOrder) - 1; i >= 0; i-- {
		t := s.trends[s.trendOrder[i]]
		if t != nil && s.st.AffinityFor(agent.Profession, t.Topic) > 0 {
			return t
		}
	}
	return nil
}

// topicFor picks the topic a new PUBLISH_POST should cover: the context
// trend's topic when replying, otherwise the agent's highest-affinity topic.
func (s *Simulator) topicFor(agent *Agent, trend *Trend) Topic {
	if trend != nil {
		return trend.Topic
	}
	best := AllTopics[0]
	bestScore := -1
	for _, topic := range AllTopics {
		if score := s.st.AffinityFor(agent.Profession, topic); score > bestScore {
			bestScore = score
			best = topic
		}
	}
	return best
}

func (s *Simulator) enqueueChosenAction(agent *Agent, choice string, trend *Trend) {
	now := s.clock.Now()
	var ev *Event

	switch choice {
	case candidatePost:
		var parent *uuid.UUID
		if trend != nil {
			id := trend.ID
			parent = &id
		}
		ev = NewEvent(s.run.ID, now, EventPublishPost, PublishPostPayload{
			AuthorID:      agent.ID,
			Topic:         s.topicFor(agent, trend),
			ParentTrendID: parent,
		})
	case candidateSelfDev:
		ev = NewEvent(s.run.ID, now, EventSelfDev, SelfDevPayload{AgentID: agent.ID})
	case candidatePurchaseL1:
		ev = NewEvent(s.run.ID, now, EventPurchaseL1, PurchasePayload{AgentID: agent.ID, Level: PurchaseL1})
	case candidatePurchaseL2:
		ev = NewEvent(s.run.ID, now, EventPurchaseL2, PurchasePayload{AgentID: agent.ID, Level: PurchaseL2})
	case candidatePurchaseL3:
		ev = NewEvent(s.run.ID, now, EventPurchaseL3, PurchasePayload{AgentID: agent.ID, Level: PurchaseL3})
	default:
		return
	}

	if err := s.queue.Push(ev); err != nil {
		s.log.WithError(err).Warnf("failed to enqueue %s for agent %s", choice, agent.ID)
	}
}

// maybeFlush hands newly-appended ledger records to the Repository once they
// cross cfg.BatchSize, and periodically re-syncs full agent/trend snapshots.
// The Repository owns its own batching/retry schedule (§4.3); this just
// decides when to hand it work.
func (s *Simulator) maybeFlush(ctx context.Context) error {
	if len(s.ledger.History)-s.historyFlushed >= s.cfg.BatchSize {
		batch := s.ledger.History[s.historyFlushed:]
		if err := s.repo.PersistHistory(ctx, batch); err != nil {
			return err
		}
		s.historyFlushed = len(s.ledger.History)
	}
	if len(s.ledger.Audit)-s.auditFlushed >= s.cfg.BatchSize {
		batch := s.ledger.Audit[s.auditFlushed:]
		if err := s.repo.PersistEvents(ctx, batch); err != nil {
			return err
		}
		s.auditFlushed = len(s.ledger.Audit)
	}

	s.tickCount++
	if s.cfg.BatchSize > 0 && s.tickCount%int64(s.cfg.BatchSize) == 0 {
		s.persistAgentsSnapshot(ctx)
		s.persistTrendsSnapshot(ctx)
	}
	return nil
}

func (s *Simulator) agentRecord(a *Agent) repository.AgentRecord {
	return repository.AgentRecord{
		ID:                  a.ID,
		SimulationID:        s.run.ID,
		Profession:          string(a.Profession),
		FinancialCapability: a.FinancialCapability,
		TrendReceptivity:    a.TrendReceptivity,
		SocialStatus:        a.SocialStatus,
		EnergyLevel:         a.EnergyLevel,
		TimeBudget:          a.TimeBudget,
		PurchasesToday:      a.PurchasesToday,
	}
}

func (s *Simulator) trendRecord(t *Trend) repository.TrendRecord {
	return repository.TrendRecord{
		ID:                t.ID,
		SimulationID:      t.SimulationID,
		Topic:             string(t.Topic),
		OriginatorAgentID: t.OriginatorAgentID,
		ParentTrendID:     t.ParentTrendID,
		CreatedAt:         t.CreatedAt,
		BaseVirality:      t.BaseVirality,
		CoverageLevel:     string(t.CoverageLevel),
		TotalInteractions: t.TotalInteractions,
		Sentiment:         string(t.Sentiment),
		LastInteractionTs: t.LastInteractionTs,
	}
}

func (s *Simulator) persistAgentsSnapshot(ctx context.Context) {
	batch := make([]repository.AgentRecord, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		batch = append(batch, s.agentRecord(s.agents[id]))
	}
	if err := s.repo.PersistAgents(ctx, batch); err != nil {
		s.log.WithError(err).Warn("persist agents snapshot reported an error")
	}
}

func (s *Simulator) persistTrendsSnapshot(ctx context.Context) {
	batch := make([]repository.TrendRecord, 0, len(s.trendOrder))
	for _, id := range s.trendOrder {
		batch = append(batch, s.trendRecord(s.trends[id]))
	}
	if err := s.repo.PersistTrends(ctx, batch); err != nil {
		s.log.WithError(err).Warn("persist trends snapshot reported an error")
	}
}

// shutdown implements §4.8: transition to STOPPING, drain events already due
// (timestamp <= now) bounded by ShutdownTimeoutSec, flush, and land on a
// terminal status.
func (s *Simulator) shutdown(status RunStatus) error {
	ctx := context.Background()
	s.run.Status = RunStopping
	if err := s.repo.UpdateRunStatus(ctx, s.run.ID, string(RunStopping)); err != nil {
		s.log.WithError(err).Warn("failed to persist STOPPING status")
	}

	timeout := time.Duration(s.cfg.ShutdownTimeoutSec) * time.Second
	deadline := time.Now().Add(timeout)
	now := s.clock.Now()

	timedOut := false
	drained := 0
drain:
	for {
		ts, ok := s.queue.PeekTimestamp()
		if !ok || ts > now {
			break drain
		}
		if time.Now().After(deadline) {
			timedOut = true
			break drain
		}
		ev := s.queue.Pop()
		s.dispatch(ctx, ev)
		drained++
	}

	if timedOut && status == RunCompleted {
		status = RunForceStopped
	}

	s.persistAgentsSnapshot(ctx)
	s.persistTrendsSnapshot(ctx)
	if len(s.ledger.History) > s.historyFlushed {
		if err := s.repo.PersistHistory(ctx, s.ledger.History[s.historyFlushed:]); err != nil {
			s.log.WithError(err).Warn("final history flush reported an error")
		}
		s.historyFlushed = len(s.ledger.History)
	}
	if len(s.ledger.Audit) > s.auditFlushed {
		if err := s.repo.PersistEvents(ctx, s.ledger.Audit[s.auditFlushed:]); err != nil {
			s.log.WithError(err).Warn("final audit flush reported an error")
		}
		s.auditFlushed = len(s.ledger.Audit)
	}

	flushCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.repo.Flush(flushCtx); err != nil {
		s.log.WithError(err).Warn("repository flush reported an error during shutdown")
	}

	if err := s.repo.UpdateRunStatus(ctx, s.run.ID, string(status)); err != nil {
		s.log.WithError(err).Warnf("failed to persist terminal status %s", status)
	}
	s.run.Status = status
	s.metrics.SetSimulationsActive(0)

	if timedOut {
		return fmt.Errorf("%w: drained %d due events before timing out after %s", ErrShutdownTimeout, drained, timeout)
	}
	return nil
}

// Abort implements the fatal-abort path (§4.8): mark the run FAILED, flush
// whatever was recorded, and surface cause wrapped in ErrInvariantViolation.
func (s *Simulator) Abort(cause error) error {
	ctx := context.Background()
	s.log.WithField("severity", "critical").WithError(cause).Error("aborting simulation: invariant violation")

	if err := s.repo.UpdateRunStatus(ctx, s.run.ID, string(RunFailed)); err != nil {
		s.log.WithError(err).Warn("failed to persist FAILED status")
	}
	s.run.Status = RunFailed
	if err := s.repo.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("repository flush reported an error during abort")
	}
	s.metrics.SetSimulationsActive(0)
	return fmt.Errorf("%w: %v", ErrInvariantViolation, cause)
}

// Metrics exposes the simulator's metrics sink for an embedding harness.
func (s *Simulator) Metrics() *Metrics { return s.metrics }

// RunRecord returns the underlying Run record (current status, ids, config snapshot).
func (s *Simulator) RunRecord() *Run { return s.run }

// EngineState implementation. See engine_state.go for the contract.

func (s *Simulator) Agent(id uuid.UUID) (*Agent, bool) {
	a, ok := s.agents[id]
	return a, ok
}

func (s *Simulator) AllAgents() []*Agent {
	out := make([]*Agent, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		out = append(out, s.agents[id])
	}
	return out
}

func (s *Simulator) Trend(id uuid.UUID) (*Trend, bool) {
	t, ok := s.trends[id]
	return t, ok
}

func (s *Simulator) AddTrend(t *Trend) {
	s.trends[t.ID] = t
	s.trendOrder = append(s.trendOrder, t.ID)
}

func (s *Simulator) Now() float64 { return s.clock.Now() }

func (s *Simulator) StaticTables() *StaticTables { return s.st }

func (s *Simulator) Config() Config { return s.cfg }

func (s *Simulator) RNG() *PartitionedRNG { return s.rng }

func (s *Simulator) Schedule(ev *Event) error { return s.queue.Push(ev) }

func (s *Simulator) Ledger() *trace.Ledger { return s.ledger }

func (s *Simulator) SimulationID() uuid.UUID { return s.run.ID }

func (s *Simulator) RecordAction(kind EventKind, level PurchaseLevel, profession Profession) {
	s.metrics.RecordAction(kind, level, profession)
}
