// README: Driver endpoints: public vehicle descriptor and the signed-in driver's profile.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

// DriverVehicle fetches the vehicle descriptor of a driver.
func (c *Client) DriverVehicle(ctx context.Context, driverID types.ID) (trip.Vehicle, error) {
	var resp struct {
		Data *struct {
			VehicleType        string `json:"vehicleType"`
			VehiclePlateNumber string `json:"vehiclePlateNumber"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/drivers/"+url.PathEscape(string(driverID)), true, nil, &resp); err != nil {
		return trip.Vehicle{}, err
	}
	if resp.Data == nil {
		return trip.Vehicle{}, fmt.Errorf("%w: driver %s: missing data field", ErrMalformed, driverID)
	}
	return trip.Vehicle{Type: resp.Data.VehicleType, PlateNumber: resp.Data.VehiclePlateNumber}, nil
}

type DriverProfile struct {
	User struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"user"`
	DriverLicense struct {
		LicenseNumber string `json:"licenseNumber"`
		IssueDate     string `json:"issueDate"`
		ExpiryDate    string `json:"expiryDate"`
		LicenseType   string `json:"licenseType"`
	} `json:"driverLicense"`
	Vehicle struct {
		Make               string `json:"make"`
		Model              string `json:"model"`
		Year               int    `json:"year"`
		LicensePlate       string `json:"licensePlate"`
		RegistrationExpiry string `json:"registrationExpiry"`
		Color              string `json:"color"`
	} `json:"vehicle"`
}

func (c *Client) Profile(ctx context.Context) (DriverProfile, error) {
	var p DriverProfile
	err := c.do(ctx, http.MethodGet, "/api/drivers/profile", true, nil, &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, p DriverProfile) (DriverProfile, error) {
	var out DriverProfile
	if err := c.do(ctx, http.MethodPut, "/api/drivers/profile", true, p, &out); err != nil {
		return DriverProfile{}, err
	}
	return out, nil
}
