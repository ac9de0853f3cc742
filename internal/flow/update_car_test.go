package flow

import (
	"testing"

	"github.com/fusioncars/dealerbot/internal/models"
)

func TestApplyUpdate(t *testing.T) {
	car := models.Car{Brand: "BMW", Model: "X5", Price: 5000000, Color: "Black"}

	tests := []struct {
		field string
		value string
		check func(models.Car) bool
	}{
		{FieldPrice, "4500000", func(c models.Car) bool { return c.Price == 4500000 }},
		{FieldYear, "2020", func(c models.Car) bool { return c.Year == 2020 }},
		{FieldKmsDriven, "30000", func(c models.Car) bool { return c.KmsDriven == 30000 }},
		{FieldFuelType, "Diesel", func(c models.Car) bool { return c.FuelType == models.FuelDiesel }},
		{FieldTransmission, "Manual", func(c models.Car) bool { return c.Transmission == models.TransmissionManual }},
		{FieldColor, "Blue", func(c models.Car) bool { return c.Color == "Blue" }},
		{FieldOwners, "2", func(c models.Car) bool { return c.Owners == 2 }},
		{FieldImage, "https://cdn.example.com/x5.jpg", func(c models.Car) bool { return c.Image == "https://cdn.example.com/x5.jpg" }},
	}
	for _, tt := range tests {
		if err := ApplyUpdate(&car, tt.field, tt.value); err != nil {
			t.Fatalf("ApplyUpdate(%s) returned error: %v", tt.field, err)
		}
		if !tt.check(car) {
			t.Errorf("ApplyUpdate(%s, %s) did not take effect: %+v", tt.field, tt.value, car)
		}
	}
	if car.Name != "BMW X5" {
		t.Errorf("name not recomputed: %q", car.Name)
	}
}

func TestApplyUpdate_UnknownField(t *testing.T) {
	car := models.Car{}
	if err := ApplyUpdate(&car, "vin", "abc"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestCarFromFields_MissingField(t *testing.T) {
	fields := map[string]string{FieldBrand: "BMW"}
	if _, err := CarFromFields(fields, "admin_1"); err == nil {
		t.Error("expected error for incomplete field set")
	}
}
