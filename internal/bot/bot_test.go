package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fusioncars/dealerbot/internal/flow"
	"github.com/fusioncars/dealerbot/internal/messaging"
	"github.com/fusioncars/dealerbot/internal/models"
	"github.com/fusioncars/dealerbot/internal/store"
)

type sentMessage struct {
	To   string
	Body string
}

// mockMessenger records outbound sends and exposes a response channel the
// tests can feed.
type mockMessenger struct {
	mu        sync.Mutex
	sent      []sentMessage
	responses chan models.Response
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{responses: make(chan models.Response, 16)}
}

func (m *mockMessenger) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return messaging.CanonicalizePhone(recipient)
}

func (m *mockMessenger) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return nil
}

func (m *mockMessenger) Start(ctx context.Context) error { return nil }
func (m *mockMessenger) Stop() error                     { return nil }

func (m *mockMessenger) Responses() <-chan models.Response { return m.responses }

func (m *mockMessenger) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

const (
	adminNumber    = "919876543210"
	strangerNumber = "917000000000"
)

func allPermissions() []models.Permission {
	return []models.Permission{
		models.PermManageCars,
		models.PermViewAnalytics,
		models.PermManageBookings,
	}
}

// newTestBot builds a bot over an in-memory store with one fully privileged
// admin and a loaded roster.
func newTestBot(t *testing.T, opts ...Option) (*Bot, *mockMessenger, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.CreateAdmin(models.Admin{
		ID:               "admin_1",
		Name:             "Priya",
		WhatsAppNumber:   adminNumber,
		WhatsAppVerified: true,
		Permissions:      allPermissions(),
	}); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	messenger := newMockMessenger()
	b := NewBot(st, messenger, opts...)
	if err := b.directory.Load(st); err != nil {
		t.Fatalf("roster load failed: %v", err)
	}
	return b, messenger, st
}

func mustCanonical(t *testing.T, number string) string {
	t.Helper()
	canonical, err := messaging.CanonicalizePhone(number)
	if err != nil {
		t.Fatalf("CanonicalizePhone(%q) failed: %v", number, err)
	}
	return canonical
}

func send(b *Bot, from, body string) {
	b.handleMessage(context.Background(), models.Response{From: from, Body: body, Time: time.Now().Unix()})
}

func TestUnauthorizedCommandGetsSingleDenial(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, strangerNumber, "/stats")

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, "Unauthorized") {
		t.Errorf("expected denial reply, got %q", sent[0].Body)
	}
	if sent[0].To != strangerNumber {
		t.Errorf("reply went to %q", sent[0].To)
	}
}

func TestUnauthorizedNonCommandIsIgnored(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, strangerNumber, "hello, is this car still available?")

	if got := len(messenger.sentMessages()); got != 0 {
		t.Errorf("expected no replies, got %d", got)
	}
}

func TestAuthorizedNonCommandNoConversationIsIgnored(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "good morning")

	if got := len(messenger.sentMessages()); got != 0 {
		t.Errorf("expected no replies, got %d", got)
	}
}

func TestUnknownCommandGetsHelpPointer(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/frobnicate now")

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, "/help") {
		t.Errorf("expected help pointer, got %q", sent[0].Body)
	}
}

func TestCommandTokenIsCaseInsensitive(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/HELP")

	sent := messenger.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0].Body, "FusionCars Admin Bot") {
		t.Fatalf("expected help text, got %v", sent)
	}
}

// Full guided creation: /create, ten answers, one listing in the catalog.
func TestCreateFlowEndToEnd(t *testing.T) {
	b, messenger, st := newTestBot(t)

	send(b, adminNumber, "/create")
	inputs := []string{
		"Mercedes-Benz", "S-Class", "2023", "9500000", "12000",
		"Petrol", "Automatic", "White", "1", "https://cdn.example.com/s-class.jpg",
	}
	for _, input := range inputs {
		send(b, adminNumber, input)
	}

	// 1 initial prompt + 9 step prompts + 1 summary.
	sent := messenger.sentMessages()
	if len(sent) != 11 {
		t.Fatalf("expected 11 replies, got %d", len(sent))
	}
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "Car Listed Successfully") {
		t.Errorf("expected success summary, got %q", last)
	}

	cars, total, err := st.ListCars(1, 10)
	if err != nil {
		t.Fatalf("ListCars failed: %v", err)
	}
	if total != 1 || len(cars) != 1 {
		t.Fatalf("expected exactly 1 listing, got %d", total)
	}
	car := cars[0]
	if car.Name != "Mercedes-Benz S-Class" || car.Year != 2023 || car.Price != 9500000 {
		t.Errorf("unexpected listing: %+v", car)
	}
	if car.CreatedBy != "admin_1" {
		t.Errorf("audit field not set: %+v", car)
	}
	if b.conversations.Len() != 0 {
		t.Errorf("conversation not cleared after commit")
	}
}

func TestCreateFlowInvalidInputReprompts(t *testing.T) {
	b, messenger, st := newTestBot(t)

	send(b, adminNumber, "/create")
	send(b, adminNumber, "BMW")
	send(b, adminNumber, "X5")
	send(b, adminNumber, "soon") // invalid year

	sent := messenger.sentMessages()
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "⚠️") || !strings.Contains(last, "year") {
		t.Errorf("expected year re-prompt, got %q", last)
	}

	if _, total, _ := st.ListCars(1, 10); total != 0 {
		t.Error("no listing should exist mid-flow")
	}
}

func TestCreateFlowCancel(t *testing.T) {
	b, messenger, st := newTestBot(t)

	send(b, adminNumber, "/create")
	send(b, adminNumber, "BMW")
	send(b, adminNumber, "/cancel")

	sent := messenger.sentMessages()
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "cancelled") {
		t.Errorf("expected cancel confirmation, got %q", last)
	}
	if b.conversations.Len() != 0 {
		t.Error("conversation not cleared after cancel")
	}
	if _, total, _ := st.ListCars(1, 10); total != 0 {
		t.Error("cancelled flow must not create a listing")
	}

	// A later /cancel with nothing active gets its own reply.
	send(b, adminNumber, "/cancel")
	sent = messenger.sentMessages()
	if !strings.Contains(sent[len(sent)-1].Body, "Nothing to cancel") {
		t.Errorf("expected nothing-to-cancel reply, got %q", sent[len(sent)-1].Body)
	}
}

func TestCreateFlowCommitFailure(t *testing.T) {
	b, messenger, st := newTestBot(t)
	st.FailCreates = true

	send(b, adminNumber, "/create")
	for _, input := range []string{
		"BMW", "X5", "2021", "4500000", "30000",
		"Diesel", "Automatic", "Black", "1", "https://cdn.example.com/x5.jpg",
	} {
		send(b, adminNumber, input)
	}

	sent := messenger.sentMessages()
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "Could not save") {
		t.Errorf("expected save-failure reply, got %q", last)
	}
	if b.conversations.Len() != 0 {
		t.Error("conversation must be discarded after commit failure")
	}
}

func TestUpdateFlowEndToEnd(t *testing.T) {
	b, messenger, st := newTestBot(t)
	car := models.Car{Brand: "BMW", Model: "X5", Name: "BMW X5", Year: 2021, Price: 5000000}
	st.CreateCar(&car)

	send(b, adminNumber, "/update "+car.ID)
	send(b, adminNumber, "price")
	send(b, adminNumber, "4,50,000")

	sent := messenger.sentMessages()
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "Updated") {
		t.Errorf("expected update confirmation, got %q", last)
	}

	got, _ := st.GetCar(car.ID)
	if got.Price != 450000 {
		t.Errorf("price not updated: %d", got.Price)
	}
	if got.LastUpdatedBy != "admin_1" {
		t.Errorf("audit field not set: %+v", got)
	}
}

func TestUpdateUnknownCar(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/update abc123")

	sent := messenger.sentMessages()
	if len(sent) != 1 || sent[0].Body != carNotFoundText {
		t.Fatalf("expected single car-not-found reply, got %v", sent)
	}
	if b.conversations.Len() != 0 {
		t.Error("no conversation should start for an unknown car")
	}
}

// The spec scenario: /delete with an unknown ID yields exactly one reply.
func TestDeleteUnknownCar(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/delete abc123")

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 reply, got %d", len(sent))
	}
	if sent[0].Body != carNotFoundText {
		t.Errorf("expected car-not-found reply, got %q", sent[0].Body)
	}
}

func TestDeleteCar(t *testing.T) {
	b, messenger, st := newTestBot(t)
	car := models.Car{Brand: "Audi", Model: "A6", Name: "Audi A6"}
	st.CreateCar(&car)

	send(b, adminNumber, "/delete "+car.ID)

	sent := messenger.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0].Body, "Deleted") {
		t.Fatalf("expected delete confirmation, got %v", sent)
	}
	if got, _ := st.GetCar(car.ID); got != nil {
		t.Error("car still present after /delete")
	}
}

func TestSoldAndFeatured(t *testing.T) {
	b, messenger, st := newTestBot(t)
	car := models.Car{Brand: "Audi", Model: "A6", Name: "Audi A6", Price: 4000000}
	st.CreateCar(&car)

	send(b, adminNumber, "/sold "+car.ID)
	send(b, adminNumber, "/featured "+car.ID)

	sent := messenger.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, "sold") {
		t.Errorf("unexpected sold reply: %q", sent[0].Body)
	}
	if !strings.Contains(sent[1].Body, "featured") {
		t.Errorf("unexpected featured reply: %q", sent[1].Body)
	}

	got, _ := st.GetCar(car.ID)
	if !got.Sold || !got.Featured || got.Available {
		t.Errorf("flags not applied: %+v", got)
	}
}

func TestListCommand(t *testing.T) {
	b, messenger, st := newTestBot(t)

	send(b, adminNumber, "/list")
	sent := messenger.sentMessages()
	if !strings.Contains(sent[0].Body, "No active listings") {
		t.Errorf("expected empty-catalog reply, got %q", sent[0].Body)
	}

	car := models.Car{Brand: "BMW", Model: "X5", Name: "BMW X5", Year: 2021, Price: 4500000, KmsDriven: 30000, FuelType: models.FuelDiesel, Transmission: models.TransmissionAutomatic}
	st.CreateCar(&car)

	send(b, adminNumber, "/list")
	sent = messenger.sentMessages()
	body := sent[len(sent)-1].Body
	for _, want := range []string{"BMW X5", "₹45.00 Lakh", car.ID} {
		if !strings.Contains(body, want) {
			t.Errorf("listing reply missing %q: %s", want, body)
		}
	}

	send(b, adminNumber, "/list nope")
	sent = messenger.sentMessages()
	if !strings.Contains(sent[len(sent)-1].Body, "Usage") {
		t.Errorf("expected usage reply for bad page, got %q", sent[len(sent)-1].Body)
	}
}

func TestStatsCommand(t *testing.T) {
	b, messenger, st := newTestBot(t)

	available := models.Car{Brand: "BMW", Model: "X5", Name: "BMW X5", Price: 4500000}
	st.CreateCar(&available)
	soldCar := models.Car{Brand: "Audi", Model: "A6", Name: "Audi A6", Price: 4000000}
	st.CreateCar(&soldCar)
	st.MarkCarSold(soldCar.ID)

	send(b, adminNumber, "/stats")

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	body := sent[0].Body
	for _, want := range []string{"2 total", "1 available", "1 sold", "₹40.00 Lakh"} {
		if !strings.Contains(body, want) {
			t.Errorf("stats reply missing %q: %s", want, body)
		}
	}
}

func TestBookingsCommand(t *testing.T) {
	b, messenger, st := newTestBot(t)

	send(b, adminNumber, "/bookings")
	sent := messenger.sentMessages()
	if !strings.Contains(sent[0].Body, "No pending bookings") {
		t.Errorf("expected empty reply, got %q", sent[0].Body)
	}

	st.CreateBooking(models.Booking{
		ID:            "bk_1",
		CarName:       "BMW X5",
		CustomerName:  "Rahul",
		CustomerPhone: "919812345678",
		PreferredDate: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		Status:        models.BookingStatusPending,
		CreatedAt:     time.Now(),
	})

	send(b, adminNumber, "/bookings")
	sent = messenger.sentMessages()
	body := sent[len(sent)-1].Body
	for _, want := range []string{"BMW X5", "Rahul", "bk_1"} {
		if !strings.Contains(body, want) {
			t.Errorf("bookings reply missing %q: %s", want, body)
		}
	}
}

func TestPermissionDeniedPerHandler(t *testing.T) {
	b, messenger, st := newTestBot(t)
	// A second admin with no permissions at all.
	limited := "918888888888"
	st.CreateAdmin(models.Admin{ID: "admin_2", WhatsAppNumber: limited, WhatsAppVerified: true})
	if err := b.directory.Load(st); err != nil {
		t.Fatalf("roster reload failed: %v", err)
	}

	for _, command := range []string{"/create", "/update x", "/delete x", "/sold x", "/featured x", "/describe x", "/stats", "/bookings"} {
		send(b, limited, command)
	}

	sent := messenger.sentMessages()
	if len(sent) != 8 {
		t.Fatalf("expected 8 replies, got %d", len(sent))
	}
	for i, msg := range sent {
		if msg.Body != noPermissionText {
			t.Errorf("reply %d: expected permission denial, got %q", i, msg.Body)
		}
	}
}

type staticDescriber struct {
	text string
	err  error
}

func (d staticDescriber) DescribeCar(ctx context.Context, car models.Car) (string, error) {
	return d.text, d.err
}

func TestDescribeCommand(t *testing.T) {
	b, messenger, st := newTestBot(t, WithDescriber(staticDescriber{text: "A pristine executive sedan."}))
	car := models.Car{Brand: "Mercedes-Benz", Model: "S-Class", Name: "Mercedes-Benz S-Class"}
	st.CreateCar(&car)

	send(b, adminNumber, "/describe "+car.ID)

	sent := messenger.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0].Body, "pristine executive sedan") {
		t.Fatalf("expected generated description, got %v", sent)
	}
}

func TestDescribeCommandUnconfigured(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/describe abc")

	sent := messenger.sentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0].Body, "not configured") {
		t.Fatalf("expected unconfigured reply, got %v", sent)
	}
}

func TestConversationSurvivesOnlyForItsSender(t *testing.T) {
	b, messenger, st := newTestBot(t)
	second := "917999999999"
	st.CreateAdmin(models.Admin{
		ID: "admin_2", WhatsAppNumber: second, WhatsAppVerified: true,
		Permissions: allPermissions(),
	})
	b.directory.Load(st)

	send(b, adminNumber, "/create")
	// The second admin's commands run normally while the first is mid-flow.
	send(b, second, "/help")

	sent := messenger.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(sent))
	}
	if !strings.Contains(sent[1].Body, "FusionCars Admin Bot") {
		t.Errorf("second admin did not get help text: %q", sent[1].Body)
	}
	if b.conversations.Len() != 1 {
		t.Errorf("expected the first admin's conversation to survive, len=%d", b.conversations.Len())
	}
}

func TestCommandDispatchesMidConversation(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/create")
	send(b, adminNumber, "Mercedes-Benz")
	send(b, adminNumber, "/help")

	sent := messenger.sentMessages()
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "FusionCars Admin Bot") {
		t.Fatalf("expected /help to be dispatched mid-flow, got %q", last)
	}

	// The conversation is untouched: still waiting on the model, and the
	// command text was not stored as a field value.
	state, ok := b.conversations.Get(adminNumber)
	if !ok {
		t.Fatal("conversation must survive a /help mid-flow")
	}
	if state.StepKey != flow.FieldModel {
		t.Errorf("expected conversation at %q, got %q", flow.FieldModel, state.StepKey)
	}
	if got := state.Fields[flow.FieldBrand]; got != "Mercedes-Benz" {
		t.Errorf("expected brand %q, got %q", "Mercedes-Benz", got)
	}

	send(b, adminNumber, "S-Class")
	sent = messenger.sentMessages()
	if !strings.Contains(sent[len(sent)-1].Body, "year") {
		t.Errorf("flow did not resume after /help, got %q", sent[len(sent)-1].Body)
	}
}

func TestCreateRestartsMidConversation(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/create")
	send(b, adminNumber, "BMW")
	send(b, adminNumber, "/create")

	sent := messenger.sentMessages()
	if !strings.Contains(sent[len(sent)-1].Body, "Step 1/10") {
		t.Fatalf("expected a fresh create flow, got %q", sent[len(sent)-1].Body)
	}

	state, ok := b.conversations.Get(adminNumber)
	if !ok {
		t.Fatal("expected an active conversation after restart")
	}
	if state.StepKey != flow.FieldBrand {
		t.Errorf("expected restart at %q, got %q", flow.FieldBrand, state.StepKey)
	}
	if len(state.Fields) != 0 {
		t.Errorf("restarted flow must not carry fields over, got %v", state.Fields)
	}
	if b.conversations.Len() != 1 {
		t.Errorf("expected a single conversation, len=%d", b.conversations.Len())
	}
}

func TestCancelWithTrailingArgsAbortsMidConversation(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	send(b, adminNumber, "/create")
	send(b, adminNumber, "BMW")
	send(b, adminNumber, "/cancel please")

	sent := messenger.sentMessages()
	if !strings.Contains(sent[len(sent)-1].Body, "cancelled") {
		t.Errorf("expected cancel confirmation, got %q", sent[len(sent)-1].Body)
	}
	if b.conversations.Len() != 0 {
		t.Error("conversation not cleared after cancel")
	}
}

func TestReplyTruncatesOnRuneBoundary(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	// 4-byte runes guarantee the length cap lands mid-rune.
	body := strings.Repeat("🚗", models.MaxReplyLength/4+10)
	b.reply(context.Background(), adminNumber, body)

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	got := sent[0].Body
	if len(got) > models.MaxReplyLength {
		t.Errorf("body not truncated: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncated body is not valid UTF-8")
	}
}

func TestRevokedAdminMidConversation(t *testing.T) {
	b, messenger, st := newTestBot(t)

	send(b, adminNumber, "/create")

	// Revoke and reload the roster mid-flow.
	st.CreateAdmin(models.Admin{ID: "admin_1", WhatsAppNumber: adminNumber, WhatsAppVerified: false})
	b.directory.Load(st)

	send(b, adminNumber, "BMW")

	sent := messenger.sentMessages()
	last := sent[len(sent)-1].Body
	if !strings.Contains(last, "Unauthorized") {
		t.Errorf("expected denial after revocation, got %q", last)
	}
	if b.conversations.Len() != 0 {
		t.Error("revoked admin's conversation must be discarded")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	b, messenger, _ := newTestBot(t)
	b.describer = panicDescriber{}

	send(b, adminNumber, "/describe abc")
	// The bot keeps serving after the panic.
	send(b, adminNumber, "/help")

	sent := messenger.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, "Something went wrong") {
		t.Errorf("expected generic failure reply, got %q", sent[0].Body)
	}
	if !strings.Contains(sent[1].Body, "FusionCars Admin Bot") {
		t.Errorf("expected help after recovery, got %q", sent[1].Body)
	}
}

type panicDescriber struct{}

func (panicDescriber) DescribeCar(ctx context.Context, car models.Car) (string, error) {
	panic("boom")
}

func TestNotifyBroadcastsToRoster(t *testing.T) {
	b, messenger, st := newTestBot(t)
	st.CreateAdmin(models.Admin{ID: "admin_2", WhatsAppNumber: "918888888888", WhatsAppVerified: true})
	b.directory.Load(st)

	b.Notify(context.Background(), "📅 New booking received.")

	sent := messenger.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sent))
	}
	recipients := map[string]bool{}
	for _, msg := range sent {
		if msg.Body != "📅 New booking received." {
			t.Errorf("unexpected body %q", msg.Body)
		}
		recipients[msg.To] = true
	}
	if !recipients[adminNumber] || !recipients["918888888888"] {
		t.Errorf("unexpected recipients: %v", recipients)
	}
}

func TestSendDailyDigest(t *testing.T) {
	b, messenger, st := newTestBot(t)
	car := models.Car{Brand: "BMW", Model: "X5", Name: "BMW X5", Price: 4500000}
	st.CreateCar(&car)
	st.CreateBooking(models.Booking{ID: "bk_1", Status: models.BookingStatusPending, CreatedAt: time.Now()})

	b.SendDailyDigest(context.Background())

	sent := messenger.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 digest, got %d", len(sent))
	}
	for _, want := range []string{"Daily Digest", "1 total", "Pending bookings: 1"} {
		if !strings.Contains(sent[0].Body, want) {
			t.Errorf("digest missing %q: %s", want, sent[0].Body)
		}
	}
}

func TestRunDrainsResponsesUntilCancelled(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	messenger.responses <- models.Response{From: adminNumber, Body: "/help", Time: time.Now().Unix()}

	deadline := time.After(2 * time.Second)
	for len(messenger.sentMessages()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reply")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	b, messenger, _ := newTestBot(t)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	close(messenger.responses)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after channel close")
	}
}
