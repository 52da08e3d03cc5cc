package service

import (
	"context"
	"sync"
	"time"

	"powersense/internal/logger"
	"powersense/internal/models"
	"powersense/internal/repository"
)

// CostPoller keeps a running cost estimate per user. While a user has at
// least one watcher and a period other than None is selected, history is
// refetched every interval and the estimate republished. The last good
// history is kept so a failed fetch or a price change still recomputes.
type CostPoller struct {
	usage    *UsageService
	settings repository.SettingsRepo
	log      *logger.Logger
	interval time.Duration

	mu       sync.Mutex
	sessions map[int]*costSession
	loops    sync.WaitGroup
}

type costSession struct {
	period   CostPeriod
	price    float64
	hasPrice bool
	watchers int
	gen      int
	cancel   context.CancelFunc
	power    []models.PowerSample
	fetched  bool
	feed     *Feed[CostUpdate]
}

func NewCostPoller(usage *UsageService, settings repository.SettingsRepo, log *logger.Logger, interval time.Duration) *CostPoller {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = defaultHistoryRefresh
	}
	return &CostPoller{
		usage:    usage,
		settings: settings,
		log:      log,
		interval: interval,
		sessions: make(map[int]*costSession),
	}
}

// StartPolling selects the period for userID and restarts its loop. None
// stops polling and publishes a zero estimate.
func (p *CostPoller) StartPolling(userID int, period CostPeriod) CostUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.sessionLocked(userID)
	p.stopLocked(s)
	s.period = period
	s.power, s.fetched = nil, false
	if !s.hasPrice {
		s.price = p.loadPrice(userID)
		s.hasPrice = true
	}

	up := CostUpdate{CostEstimate: zeroEstimate(period, s.price)}
	s.feed.Publish(up)
	if period != PeriodNone && s.watchers > 0 {
		p.startLocked(userID, s)
	}
	return up
}

// StopPolling is StartPolling(userID, PeriodNone).
func (p *CostPoller) StopPolling(userID int) {
	p.StartPolling(userID, PeriodNone)
}

// SetPrice changes the price for userID and recomputes from the cached history.
func (p *CostPoller) SetPrice(userID int, pricePerKwh float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[userID]
	if !ok {
		return
	}
	s.price = finitePrice(pricePerKwh)
	s.hasPrice = true
	if s.fetched {
		s.feed.Publish(CostUpdate{CostEstimate: p.usage.estimate(s.period, s.price, s.power)})
	} else {
		s.feed.Publish(CostUpdate{CostEstimate: zeroEstimate(s.period, s.price)})
	}
}

// Subscribe registers a watcher for userID. The loop runs while at least
// one watcher is subscribed; cancelling the last one stops it.
func (p *CostPoller) Subscribe(userID int) (<-chan CostUpdate, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.sessionLocked(userID)
	s.watchers++
	if s.watchers == 1 && s.period != PeriodNone && s.cancel == nil {
		p.startLocked(userID, s)
	}
	ch, cancelSub := s.feed.Subscribe()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancelSub()
			p.mu.Lock()
			defer p.mu.Unlock()
			s.watchers--
			if s.watchers == 0 {
				p.stopLocked(s)
			}
		})
	}
}

// Current returns the last published update for userID.
func (p *CostPoller) Current(userID int) (CostUpdate, bool) {
	p.mu.Lock()
	s, ok := p.sessions[userID]
	p.mu.Unlock()
	if !ok {
		return CostUpdate{}, false
	}
	return s.feed.Last()
}

// Shutdown stops every loop and waits for them.
func (p *CostPoller) Shutdown() {
	p.mu.Lock()
	for _, s := range p.sessions {
		p.stopLocked(s)
	}
	p.mu.Unlock()
	p.loops.Wait()
}

func (p *CostPoller) sessionLocked(userID int) *costSession {
	s, ok := p.sessions[userID]
	if !ok {
		s = &costSession{period: PeriodNone, feed: NewFeed[CostUpdate]()}
		p.sessions[userID] = s
	}
	return s
}

func (p *CostPoller) startLocked(userID int, s *costSession) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	p.loops.Add(1)
	go p.run(ctx, userID, s, s.gen, s.period)
}

func (p *CostPoller) stopLocked(s *costSession) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (p *CostPoller) loadPrice(userID int) float64 {
	if p.settings == nil {
		return 0
	}
	st, err := p.settings.Get(context.Background(), userID)
	if err != nil {
		p.log.Warnw("cost_price_load_failed", "user_id", userID, "error", err)
		return 0
	}
	return finitePrice(st.CostPerKwh)
}

func (p *CostPoller) run(ctx context.Context, userID int, s *costSession, gen int, period CostPeriod) {
	defer p.loops.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetch(ctx, userID, s, gen, period)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.fetch(ctx, userID, s, gen, period)
		}
	}
}

func (p *CostPoller) fetch(ctx context.Context, userID int, s *costSession, gen int, period CostPeriod) {
	hist, err := p.usage.History(ctx, historyHoursFor(period))

	p.mu.Lock()
	defer p.mu.Unlock()
	// A restart or stop since the fetch began makes this result stale.
	if ctx.Err() != nil || s.gen != gen {
		return
	}
	if err != nil {
		p.log.Warnw("cost_history_fetch_failed", "user_id", userID, "period", period, "error", err)
		if !s.fetched {
			up := CostUpdate{CostEstimate: zeroEstimate(period, s.price), Error: errBackendMessage}
			s.feed.Publish(up)
		}
		return
	}
	s.power = hist.PowerHistory
	s.fetched = true
	s.feed.Publish(CostUpdate{CostEstimate: p.usage.estimate(period, s.price, s.power)})
}

const errBackendMessage = "failed to fetch power history"
