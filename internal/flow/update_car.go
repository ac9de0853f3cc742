package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fusioncars/dealerbot/internal/models"
)

// Field keys used by the update-car flow. SeedCarID is populated by the
// dispatcher before the flow starts; the remaining two are collected.
const (
	SeedCarID        = "car_id"
	FieldUpdateField = "field"
	FieldUpdateValue = "value"
)

// updatableFields are the listing attributes an admin may change in place,
// in the order they are offered.
var updatableFields = []string{
	FieldPrice,
	FieldYear,
	FieldKmsDriven,
	FieldFuelType,
	FieldTransmission,
	FieldColor,
	FieldOwners,
	FieldImage,
}

// NewUpdateCarFlow builds the two-step listing-update chain: pick a field,
// then supply its new value.
func NewUpdateCarFlow() *Flow {
	return MustNewFlow(KindUpdateCar, "❌ Car update cancelled.", []Step{
		{
			Key:    FieldUpdateField,
			Prompt: "✏️ *Update Car Listing*\n\nWhich field do you want to change?\n(" + strings.Join(updatableFields, ", ") + ")",
			Next:   FieldUpdateValue,
			Apply:  updateFieldChoice,
		},
		{
			Key:    FieldUpdateValue,
			Prompt: "Enter the new value:",
			Next:   TerminalStep,
			Apply:  updateFieldValue,
		},
	})
}

// updateFieldChoice validates the chosen field name, case-insensitively.
func updateFieldChoice(input string, fields map[string]string) error {
	choice := strings.TrimSpace(input)
	for _, f := range updatableFields {
		if strings.EqualFold(choice, f) {
			fields[FieldUpdateField] = f
			return nil
		}
	}
	return fmt.Errorf("Unknown field %q. Choose one of: %s.", choice, strings.Join(updatableFields, ", "))
}

// updateFieldValue validates the new value with the same rule the create flow
// applies to that field.
func updateFieldValue(input string, fields map[string]string) error {
	apply, ok := valueValidators[fields[FieldUpdateField]]
	if !ok {
		return fmt.Errorf("Unknown field %q.", fields[FieldUpdateField])
	}
	scratch := make(map[string]string, 1)
	if err := apply(input, scratch); err != nil {
		return err
	}
	fields[FieldUpdateValue] = scratch[fields[FieldUpdateField]]
	return nil
}

// valueValidators reuses the create-flow transforms keyed by field name.
var valueValidators = map[string]func(string, map[string]string) error{
	FieldPrice:        positiveIntField(FieldPrice, "price"),
	FieldYear:         yearField(FieldYear),
	FieldKmsDriven:    nonNegativeIntField(FieldKmsDriven, "kilometers driven"),
	FieldFuelType:     fuelTypeField(FieldFuelType),
	FieldTransmission: transmissionField(FieldTransmission),
	FieldColor:        requiredText(FieldColor, "color"),
	FieldOwners:       nonNegativeIntField(FieldOwners, "previous owners"),
	FieldImage:        urlField(FieldImage),
}

// ApplyUpdate writes a validated field/value pair onto the listing.
func ApplyUpdate(car *models.Car, field, value string) error {
	switch field {
	case FieldPrice:
		price, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", value, err)
		}
		car.Price = price
	case FieldYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid year %q: %w", value, err)
		}
		car.Year = year
	case FieldKmsDriven:
		kms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid kilometers %q: %w", value, err)
		}
		car.KmsDriven = kms
	case FieldFuelType:
		car.FuelType = models.FuelType(value)
	case FieldTransmission:
		car.Transmission = models.Transmission(value)
	case FieldColor:
		car.Color = value
	case FieldOwners:
		owners, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid owners %q: %w", value, err)
		}
		car.Owners = owners
	case FieldImage:
		car.Image = value
	default:
		return fmt.Errorf("field %q is not updatable", field)
	}
	car.Name = car.Brand + " " + car.Model
	return nil
}
