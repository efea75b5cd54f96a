package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/clock"
	"github.com/spec-kit/claim-bot/internal/commerce"
	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/events"
	"github.com/spec-kit/claim-bot/internal/lifecycle"
	"github.com/spec-kit/claim-bot/internal/notify"
	"github.com/spec-kit/claim-bot/internal/platform"
	"github.com/spec-kit/claim-bot/internal/repository"
	"github.com/spec-kit/claim-bot/internal/timeout"
)

// memTicketRepo is an in-memory TicketRepository honoring the (nil, nil)
// not-found contract.
type memTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	orders  *memOrderRepo
}

func newMemTicketRepo(orders *memOrderRepo) *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket), orders: orders}
}

func (r *memTicketRepo) Create(_ context.Context, channelID, userID, serverName string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[channelID]; ok {
		return nil, repository.ErrDuplicateChannel
	}
	ticket := &domain.Ticket{
		ChannelID:  channelID,
		UserID:     userID,
		ServerName: serverName,
		Stage:      domain.StageLanguagePreference,
		CreatedAt:  time.Unix(0, 0),
		UpdatedAt:  time.Unix(0, 0),
	}
	r.tickets[channelID] = ticket
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) GetByChannel(ctx context.Context, channelID string, populateOrder bool) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[channelID]
	if !ok {
		return nil, nil
	}
	copied := *ticket
	if populateOrder && ticket.OrderID != nil && r.orders != nil {
		copied.Order, _ = r.orders.FindByID(ctx, *ticket.OrderID)
	}
	return &copied, nil
}

func (r *memTicketRepo) GetActiveByOrder(_ context.Context, orderID, serverName string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.OrderID != nil && *ticket.OrderID == orderID &&
			ticket.ServerName == serverName && !ticket.Stage.Terminal() {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memTicketRepo) Update(_ context.Context, channelID string, update repository.TicketUpdate) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[channelID]
	if !ok {
		return nil, nil
	}
	if update.Stage != nil {
		ticket.Stage = *update.Stage
	}
	if update.Language != nil {
		ticket.Language = update.Language
	}
	if update.OrderID != nil {
		ticket.OrderID = update.OrderID
	}
	if update.RobloxUsername != nil {
		ticket.RobloxUsername = update.RobloxUsername
	}
	if update.Timezone != nil {
		ticket.Timezone = update.Timezone
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) Delete(_ context.Context, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[channelID]; !ok {
		return false, nil
	}
	delete(r.tickets, channelID)
	return true, nil
}

func (r *memTicketRepo) ListAll(context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		out = append(out, *ticket)
	}
	return out, nil
}

func (r *memTicketRepo) ListByServer(_ context.Context, serverName string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.ServerName == serverName {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (r *memTicketRepo) CountActiveByUser(_ context.Context, userID, serverName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ticket := range r.tickets {
		if ticket.UserID == userID && ticket.ServerName == serverName && !ticket.Stage.Terminal() {
			count++
		}
	}
	return count, nil
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderRepo(orders ...*domain.Order) *memOrderRepo {
	r := &memOrderRepo{orders: make(map[string]*domain.Order)}
	for _, order := range orders {
		r.orders[order.ID] = order
	}
	return r
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return false, nil
	}
	order.Status = status
	return true, nil
}

// testPlatform is an in-memory platform.Client with admin-role control
// and per-channel delete failures.
type testPlatform struct {
	mu        sync.Mutex
	channels  map[string]platform.Channel
	nextID    int
	admins    map[string]bool
	deleteErr map[string]error
	renames   map[string]string
	dms       []string
	roles     []string
}

func newTestPlatform(channels ...platform.Channel) *testPlatform {
	p := &testPlatform{
		channels:  make(map[string]platform.Channel),
		admins:    make(map[string]bool),
		deleteErr: make(map[string]error),
		renames:   make(map[string]string),
	}
	for _, ch := range channels {
		p.channels[ch.ID] = ch
	}
	return p
}

func (p *testPlatform) FetchChannel(_ context.Context, channelID string) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return nil, platform.ErrUnknownChannel
	}
	return &ch, nil
}

func (p *testPlatform) CreateChannel(_ context.Context, spec platform.CreateChannelSpec) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	ch := platform.Channel{
		ID:      fmt.Sprintf("chan-%d", p.nextID),
		GuildID: spec.GuildID,
		Name:    spec.Name,
	}
	p.channels[ch.ID] = ch
	return &ch, nil
}

func (p *testPlatform) DeleteChannel(_ context.Context, channelID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.deleteErr[channelID]; ok {
		return err
	}
	if _, ok := p.channels[channelID]; !ok {
		return platform.ErrUnknownChannel
	}
	delete(p.channels, channelID)
	return nil
}

func (p *testPlatform) RenameChannel(_ context.Context, channelID, name, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.ErrUnknownChannel
	}
	ch.Name = name
	p.channels[channelID] = ch
	p.renames[channelID] = name
	return nil
}

func (p *testPlatform) ListGuildChannels(_ context.Context, guildID string) ([]platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platform.Channel
	for _, ch := range p.channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (p *testPlatform) SendMessage(context.Context, string, platform.Message) error { return nil }

func (p *testPlatform) SendDirectMessage(_ context.Context, userID string, _ platform.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms = append(p.dms, userID)
	return nil
}

func (p *testPlatform) AddRole(_ context.Context, _, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = append(p.roles, userID+":"+roleID)
	return nil
}

func (p *testPlatform) HasRole(_ context.Context, _, userID, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.admins[userID], nil
}

func (p *testPlatform) hasChannel(channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[channelID]
	return ok
}

// recordingNotifier captures scenario sends per channel.
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []notify.Scenario
	byChn map[string][]notify.Scenario
	dms   []notify.Scenario
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{byChn: make(map[string][]notify.Scenario)}
}

func (n *recordingNotifier) Send(_ context.Context, channelID string, _ domain.Language, scenario notify.Scenario, _ notify.Params) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, scenario)
	n.byChn[channelID] = append(n.byChn[channelID], scenario)
	return nil
}

func (n *recordingNotifier) SendDirect(_ context.Context, _ string, _ domain.Language, scenario notify.Scenario, _ notify.Params) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dms = append(n.dms, scenario)
	return nil
}

func (n *recordingNotifier) has(scenario notify.Scenario) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s == scenario {
			return true
		}
	}
	return false
}

func (n *recordingNotifier) countOf(scenario notify.Scenario) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sent {
		if s == scenario {
			count++
		}
	}
	return count
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// stubCommerce is a scriptable commerce.Service.
type stubCommerce struct {
	mu           sync.Mutex
	risk         *commerce.RiskStatus
	riskErr      error
	fulfillable  []commerce.FulfillmentDetails
	fulfillOK    bool
	cancelOK     bool
	cancelErr    error
	cancelled    []string
	fulfilledIDs []string
}

func (c *stubCommerce) FulfillableLineItems(context.Context, string) ([]commerce.FulfillmentDetails, error) {
	return c.fulfillable, nil
}

func (c *stubCommerce) FulfillLineItems(_ context.Context, details commerce.FulfillmentDetails) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fulfillOK {
		c.fulfilledIDs = append(c.fulfilledIDs, details.FulfillmentOrderID)
	}
	return c.fulfillOK, nil
}

func (c *stubCommerce) CancelOrder(_ context.Context, orderID, _ string, _, _ bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelErr != nil {
		return false, c.cancelErr
	}
	if c.cancelOK {
		c.cancelled = append(c.cancelled, orderID)
	}
	return c.cancelOK, nil
}

func (c *stubCommerce) OrderRiskAndFinancialStatus(context.Context, string) (*commerce.RiskStatus, error) {
	if c.riskErr != nil {
		return nil, c.riskErr
	}
	return c.risk, nil
}

type fixture struct {
	service  *TicketService
	tickets  *memTicketRepo
	orders   *memOrderRepo
	platform *testPlatform
	notifier *recordingNotifier
	commerce *stubCommerce
	registry *timeout.Registry
	clock    *clock.FakeClock
}

func serverTable() config.ServerTable {
	return config.ServerTable{
		"bloxy-market": {
			Name: "bloxy-market", GuildID: "guild-market",
			AdminRoleID: "role-admin", CustomerRoleID: "role-customer",
			ReviewsChannel: "chan-reviews", TranscriptID: "chan-transcript",
		},
		"grow-a-garden": {
			Name: "grow-a-garden", GuildID: "guild-garden",
			AdminRoleID: "role-admin", CustomerRoleID: "role-customer",
		},
	}
}

func ticketTiming() config.TicketConfig {
	return config.TicketConfig{
		InactivitySeconds:     120,
		ReconcileArmSeconds:   60,
		CompletedDelaySeconds: 120,
		CleanupPacingMillis:   200,
		MaxActivePerUser:      2,
	}
}

func newFixture(orders ...*domain.Order) *fixture {
	orderRepo := newMemOrderRepo(orders...)
	ticketRepo := newMemTicketRepo(orderRepo)
	p := newTestPlatform()
	notifier := newRecordingNotifier()
	stub := &stubCommerce{fulfillOK: true, cancelOK: true}
	fake := clock.Fake(time.Unix(0, 0))
	registry := timeout.NewRegistry()

	manager := lifecycle.NewManager(lifecycle.ManagerDependencies{
		Platform:   p,
		TicketRepo: ticketRepo,
		Registry:   registry,
		Clock:      fake,
		Servers:    serverTable(),
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		Pacing:     200 * time.Millisecond,
	})

	svc := NewTicketService(TicketDependencies{
		TicketRepo: ticketRepo,
		OrderRepo:  orderRepo,
		Platform:   p,
		Commerce:   stub,
		Notifier:   notifier,
		Lifecycle:  manager,
		Registry:   registry,
		Servers:    serverTable(),
		Timing:     ticketTiming(),
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
	})

	return &fixture{
		service:  svc,
		tickets:  ticketRepo,
		orders:   orderRepo,
		platform: p,
		notifier: notifier,
		commerce: stub,
		registry: registry,
		clock:    fake,
	}
}

func strptr(s string) *string { return &s }

// marketOrder builds a pending manual-delivery order claimable in
// bloxy-market.
func marketOrder(id string) *domain.Order {
	return &domain.Order{
		ID:     id,
		Status: domain.OrderStatusPending,
		Game:   "bloxy-market",
		Receiver: domain.Receiver{
			Username: "receiver_acct",
		},
		Items: []domain.OrderItem{
			{Title: "Dragon Fruit", Category: "Physical Fruit", DeliveryType: domain.DeliveryTypeManual, Quantity: 1},
			{Title: "Gamepass", Category: "Gamepasses", DeliveryType: domain.DeliveryTypeManual, Quantity: 1},
		},
	}
}

// openTicketAt creates a ticket through the service and walks it to the
// requested stage.
func (f *fixture) openTicketAt(ctx context.Context, userID, server string, stage domain.TicketStage) *domain.Ticket {
	ticket, err := f.service.OnTicketCreateRequested(ctx, userID, userID, server)
	if err != nil {
		panic(err)
	}
	if stage == domain.StageLanguagePreference {
		return ticket
	}
	lang := domain.LanguageEnglish
	if err := f.service.OnLanguageChosen(ctx, ticket.ChannelID, userID, lang); err != nil {
		panic(err)
	}
	ticket.Stage = domain.StageOrderVerification
	return ticket
}
