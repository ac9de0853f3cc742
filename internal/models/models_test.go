package models

import "testing"

func TestAdminHasPermission(t *testing.T) {
	admin := Admin{
		ID:          "a1",
		Name:        "Priya",
		Permissions: []Permission{PermManageCars, PermViewAnalytics},
	}

	if !admin.HasPermission(PermManageCars) {
		t.Error("expected admin to have manage_cars")
	}
	if admin.HasPermission(PermManageAdmins) {
		t.Error("did not expect admin to have manage_admins")
	}

	var empty Admin
	if empty.HasPermission(PermManageCars) {
		t.Error("admin with no permissions should have none")
	}
}

func TestIsValidFuelType(t *testing.T) {
	valid := []FuelType{FuelPetrol, FuelDiesel, FuelElectric, FuelHybrid, FuelCNG}
	for _, ft := range valid {
		if !IsValidFuelType(ft) {
			t.Errorf("expected %s to be valid", ft)
		}
	}
	for _, ft := range []FuelType{"", "petrol", "Steam"} {
		if IsValidFuelType(ft) {
			t.Errorf("expected %q to be invalid", ft)
		}
	}
}

func TestIsValidTransmission(t *testing.T) {
	if !IsValidTransmission(TransmissionManual) || !IsValidTransmission(TransmissionAutomatic) {
		t.Error("expected Manual and Automatic to be valid")
	}
	if IsValidTransmission("CVT") {
		t.Error("expected CVT to be invalid (not in accepted set)")
	}
	if IsValidTransmission("automatic") {
		t.Error("transmission match is case-sensitive")
	}
}
