package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fusioncars/dealerbot/internal/flow"
	"github.com/fusioncars/dealerbot/internal/models"
)

const (
	unauthorizedText = "⛔ Unauthorized. This bot is for admin use only. Contact the dealership if you believe this is a mistake."
	noPermissionText = "🚫 You don't have permission to use this command."
	carNotFoundText  = "❌ Car not found."

	listPageSize     = 5
	bookingsLimit    = 5
	statsSalesWindow = 30 * 24 * time.Hour
)

const helpText = `🤖 *FusionCars Admin Bot*

*Catalog*
/create — add a new car listing (guided)
/update [id] — change a field on a listing (guided)
/delete [id] — remove a listing
/sold [id] — mark a listing as sold
/featured [id] — toggle the featured flag
/list [page] — browse active listings
/describe [id] — generate a marketing description

*Business*
/stats — inventory and 30-day sales
/bookings — pending test-drive bookings

/cancel — abort the current guided flow
/help — this message`

// dispatchCommand parses and routes one slash command from a verified admin.
// Every branch sends exactly one reply.
func (b *Bot) dispatchCommand(ctx context.Context, admin models.Admin, sender, text string) {
	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	slog.Info("Bot dispatching command", "command", command, "admin_id", admin.ID)

	switch command {
	case "/help":
		b.reply(ctx, sender, helpText)
	case "/create":
		b.handleCreate(ctx, admin, sender)
	case "/update":
		b.handleUpdate(ctx, admin, sender, args)
	case "/delete":
		b.handleDelete(ctx, admin, sender, args)
	case "/sold":
		b.handleSold(ctx, admin, sender, args)
	case "/featured":
		b.handleFeatured(ctx, admin, sender, args)
	case "/list":
		b.handleList(ctx, sender, args)
	case "/describe":
		b.handleDescribe(ctx, admin, sender, args)
	case "/stats":
		b.handleStats(ctx, admin, sender)
	case "/bookings":
		b.handleBookings(ctx, admin, sender)
	case "/cancel":
		if state, ok := b.conversations.Get(sender); ok {
			b.advanceConversation(ctx, admin, state, flow.CancelCommand)
			return
		}
		b.reply(ctx, sender, "ℹ️ Nothing to cancel.")
	default:
		b.reply(ctx, sender, fmt.Sprintf("❓ Unknown command %s. Send */help* to see available commands.", command))
	}
}

func (b *Bot) handleCreate(ctx context.Context, admin models.Admin, sender string) {
	if !admin.HasPermission(models.PermManageCars) {
		b.reply(ctx, sender, noPermissionText)
		return
	}

	state, prompt, err := b.engine.Start(flow.KindCreateCar, sender, admin.ID, nil)
	if err != nil {
		slog.Error("Bot failed to start create flow", "admin_id", admin.ID, "error", err)
		b.reply(ctx, sender, "⚠️ Could not start the listing flow. Please try again.")
		return
	}
	b.conversations.Put(state)
	b.reply(ctx, sender, prompt)
}

func (b *Bot) handleUpdate(ctx context.Context, admin models.Admin, sender string, args []string) {
	if !admin.HasPermission(models.PermManageCars) {
		b.reply(ctx, sender, noPermissionText)
		return
	}
	if len(args) != 1 {
		b.reply(ctx, sender, "Usage: /update [car id]")
		return
	}

	car, err := b.store.GetCar(args[0])
	if err != nil {
		slog.Error("Bot failed to load car for update", "car_id", args[0], "error", err)
		b.reply(ctx, sender, "⚠️ Could not look up that car. Please try again.")
		return
	}
	if car == nil {
		b.reply(ctx, sender, carNotFoundText)
		return
	}

	seed := map[string]string{flow.SeedCarID: car.ID}
	state, prompt, err := b.engine.Start(flow.KindUpdateCar, sender, admin.ID, seed)
	if err != nil {
		slog.Error("Bot failed to start update flow", "admin_id", admin.ID, "error", err)
		b.reply(ctx, sender, "⚠️ Could not start the update flow. Please try again.")
		return
	}
	b.conversations.Put(state)
	b.reply(ctx, sender, fmt.Sprintf("Updating *%s* (%s)\n\n%s", car.Name, car.ID, prompt))
}

func (b *Bot) handleDelete(ctx context.Context, admin models.Admin, sender string, args []string) {
	if !admin.HasPermission(models.PermManageCars) {
		b.reply(ctx, sender, noPermissionText)
		return
	}
	if len(args) != 1 {
		b.reply(ctx, sender, "Usage: /delete [car id]")
		return
	}

	car, err := b.store.DeleteCar(args[0])
	if err != nil {
		slog.Error("Bot failed to delete car", "car_id", args[0], "error", err)
		b.reply(ctx, sender, "⚠️ Could not delete that car. Please try again.")
		return
	}
	if car == nil {
		b.reply(ctx, sender, carNotFoundText)
		return
	}
	b.reply(ctx, sender, fmt.Sprintf("🗑️ Deleted *%s* (%s).", car.Name, car.ID))
}

func (b *Bot) handleSold(ctx context.Context, admin models.Admin, sender string, args []string) {
	if !admin.HasPermission(models.PermManageCars) {
		b.reply(ctx, sender, noPermissionText)
		return
	}
	if len(args) != 1 {
		b.reply(ctx, sender, "Usage: /sold [car id]")
		return
	}

	car, err := b.store.MarkCarSold(args[0])
	if err != nil {
		slog.Error("Bot failed to mark car sold", "car_id", args[0], "error", err)
		b.reply(ctx, sender, "⚠️ Could not update that car. Please try again.")
		return
	}
	if car == nil {
		b.reply(ctx, sender, carNotFoundText)
		return
	}
	b.reply(ctx, sender, fmt.Sprintf("💰 *%s* marked as sold for %s. Congratulations!", car.Name, formatPrice(car.Price)))
}

func (b *Bot) handleFeatured(ctx context.Context, admin models.Admin, sender string, args []string) {
	if !admin.HasPermission(models.PermManageCars) {
		b.reply(ctx, sender, noPermissionText)
		return
	}
	if len(args) != 1 {
		b.reply(ctx, sender, "Usage: /featured [car id]")
		return
	}

	car, err := b.store.ToggleCarFeatured(args[0])
	if err != nil {
		slog.Error("Bot failed to toggle featured flag", "car_id", args[0], "error", err)
		b.reply(ctx, sender, "⚠️ Could not update that car. Please try again.")
		return
	}
	if car == nil {
		b.reply(ctx, sender, carNotFoundText)
		return
	}
	if car.Featured {
		b.reply(ctx, sender, fmt.Sprintf("⭐ *%s* is now featured.", car.Name))
	} else {
		b.reply(ctx, sender, fmt.Sprintf("☆ *%s* is no longer featured.", car.Name))
	}
}

func (b *Bot) handleList(ctx context.Context, sender string, args []string) {
	page := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			b.reply(ctx, sender, "Usage: /list [page]")
			return
		}
		page = parsed
	}

	cars, total, err := b.store.ListCars(page, listPageSize)
	if err != nil {
		slog.Error("Bot failed to list cars", "page", page, "error", err)
		b.reply(ctx, sender, "⚠️ Could not load the catalog. Please try again.")
		return
	}
	if total == 0 {
		b.reply(ctx, sender, "📭 No active listings. Send */create* to add one.")
		return
	}
	if len(cars) == 0 {
		b.reply(ctx, sender, fmt.Sprintf("📄 Page %d is empty (%d listings total).", page, total))
		return
	}

	var sb strings.Builder
	lastPage := (total + listPageSize - 1) / listPageSize
	fmt.Fprintf(&sb, "🚗 *Active Listings* (page %d/%d, %d total)\n", page, lastPage, total)
	for _, car := range cars {
		star := ""
		if car.Featured {
			star = " ⭐"
		}
		fmt.Fprintf(&sb, "\n*%s* (%d)%s\n%s · %d km · %s · %s\nID: %s\n",
			car.Name, car.Year, star,
			formatPrice(car.Price), car.KmsDriven, car.FuelType, car.Transmission,
			car.ID)
	}
	b.reply(ctx, sender, sb.String())
}

func (b *Bot) handleDescribe(ctx context.Context, admin models.Admin, sender string, args []string) {
	if !admin.HasPermission(models.PermManageCars) {
		b.reply(ctx, sender, noPermissionText)
		return
	}
	if b.describer == nil {
		b.reply(ctx, sender, "ℹ️ Description generation is not configured.")
		return
	}
	if len(args) != 1 {
		b.reply(ctx, sender, "Usage: /describe [car id]")
		return
	}

	car, err := b.store.GetCar(args[0])
	if err != nil {
		slog.Error("Bot failed to load car for describe", "car_id", args[0], "error", err)
		b.reply(ctx, sender, "⚠️ Could not look up that car. Please try again.")
		return
	}
	if car == nil {
		b.reply(ctx, sender, carNotFoundText)
		return
	}

	description, err := b.describer.DescribeCar(ctx, *car)
	if err != nil {
		slog.Error("Bot failed to generate description", "car_id", car.ID, "error", err)
		b.reply(ctx, sender, "⚠️ Could not generate a description right now. Please try again.")
		return
	}
	b.reply(ctx, sender, fmt.Sprintf("📝 *%s*\n\n%s", car.Name, description))
}

func (b *Bot) handleStats(ctx context.Context, admin models.Admin, sender string) {
	if !admin.HasPermission(models.PermViewAnalytics) {
		b.reply(ctx, sender, noPermissionText)
		return
	}

	counts, err := b.store.CarCounts()
	if err != nil {
		slog.Error("Bot failed to load car counts", "error", err)
		b.reply(ctx, sender, "⚠️ Could not load stats. Please try again.")
		return
	}
	sales, err := b.store.SalesSummary(time.Now().Add(-statsSalesWindow))
	if err != nil {
		slog.Error("Bot failed to load sales summary", "error", err)
		b.reply(ctx, sender, "⚠️ Could not load stats. Please try again.")
		return
	}

	b.reply(ctx, sender, fmt.Sprintf(
		"📊 *Dealership Stats*\n\nInventory: %d total · %d available · %d sold\nLast 30 days: %d sold, %s revenue",
		counts.Total, counts.Available, counts.Sold,
		sales.Count, formatPrice(sales.Revenue)))
}

func (b *Bot) handleBookings(ctx context.Context, admin models.Admin, sender string) {
	if !admin.HasPermission(models.PermManageBookings) {
		b.reply(ctx, sender, noPermissionText)
		return
	}

	bookings, err := b.store.ListPendingBookings(bookingsLimit)
	if err != nil {
		slog.Error("Bot failed to load bookings", "error", err)
		b.reply(ctx, sender, "⚠️ Could not load bookings. Please try again.")
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, sender, "📭 No pending bookings.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *Pending Bookings* (%d)\n", len(bookings))
	for _, bk := range bookings {
		fmt.Fprintf(&sb, "\n*%s* — %s (%s)\n%s\nID: %s\n",
			bk.CarName, bk.CustomerName, bk.CustomerPhone,
			bk.PreferredDate.Format("Mon, 02 Jan 2006"), bk.ID)
	}
	b.reply(ctx, sender, sb.String())
}

// commitCreateCar persists a completed create-car flow and confirms with a
// listing summary.
func (b *Bot) commitCreateCar(ctx context.Context, admin models.Admin, sender string, fields map[string]string) {
	car, err := flow.CarFromFields(fields, admin.ID)
	if err != nil {
		slog.Error("Bot create flow produced invalid fields", "admin_id", admin.ID, "error", err)
		b.reply(ctx, sender, "⚠️ Something went wrong. Please start over with /create.")
		return
	}

	if err := b.store.CreateCar(&car); err != nil {
		slog.Error("Bot failed to save listing", "admin_id", admin.ID, "error", err)
		b.reply(ctx, sender, "⚠️ Could not save the listing. Please try again with /create.")
		return
	}

	slog.Info("Bot created listing", "car_id", car.ID, "name", car.Name, "admin_id", admin.ID)
	b.reply(ctx, sender, fmt.Sprintf(
		"✅ *Car Listed Successfully!*\n\n🚗 %s (%d)\n💵 %s\n🛣️ %d km · %s · %s\n🎨 %s · %d owner(s)\n\nID: %s",
		car.Name, car.Year, formatPrice(car.Price),
		car.KmsDriven, car.FuelType, car.Transmission,
		car.Color, car.Owners, car.ID))
}

// commitUpdateCar applies a completed update-car flow to the stored listing.
func (b *Bot) commitUpdateCar(ctx context.Context, admin models.Admin, sender string, fields map[string]string) {
	carID := fields[flow.SeedCarID]
	field := fields[flow.FieldUpdateField]
	value := fields[flow.FieldUpdateValue]

	car, err := b.store.GetCar(carID)
	if err != nil {
		slog.Error("Bot failed to load car for update commit", "car_id", carID, "error", err)
		b.reply(ctx, sender, "⚠️ Could not save the update. Please try again.")
		return
	}
	if car == nil {
		// Deleted while the conversation was in flight.
		b.reply(ctx, sender, carNotFoundText)
		return
	}

	if err := flow.ApplyUpdate(car, field, value); err != nil {
		slog.Error("Bot update flow produced invalid field", "car_id", carID, "field", field, "error", err)
		b.reply(ctx, sender, "⚠️ Something went wrong. Please start over with /update.")
		return
	}
	car.LastUpdatedBy = admin.ID

	if err := b.store.UpdateCar(*car); err != nil {
		slog.Error("Bot failed to save update", "car_id", carID, "error", err)
		b.reply(ctx, sender, "⚠️ Could not save the update. Please try again.")
		return
	}

	slog.Info("Bot updated listing", "car_id", carID, "field", field, "admin_id", admin.ID)
	b.reply(ctx, sender, fmt.Sprintf("✅ Updated *%s* on %s (%s).", field, car.Name, car.ID))
}

// formatPrice renders an amount in rupees, using Lakh for 6-digit-plus values.
func formatPrice(price int64) string {
	if price >= 100000 {
		return fmt.Sprintf("₹%.2f Lakh", float64(price)/100000)
	}
	return fmt.Sprintf("₹%d", price)
}
