package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

const day = 24 * time.Hour

// alertSeparator joins a capacity alert and an age alert.
const alertSeparator = " | "

// Renewal cycle lengths, in days, used by ClassifyCredentialHealth.
const (
	cycleViki    = 14
	cycleKocowa  = 25
	cycleIQIYI   = 30
	cycleWeTV    = 30
	cycleDefault = 30

	// warningWindowDays is the largest number of remaining days reported as
	// a warning rather than ok.
	warningWindowDays = 2
)

// AccountAlert returns the subscriber-facing alert for a credential of the
// given service and the number of days it has been active. Days are counted
// on UTC calendar dates, inclusive of the creation day, so a credential
// created today is on day 1. An empty alert means there is nothing to report.
func AccountAlert(service string, createdAt, now time.Time) (string, int) {
	daysActive := int(utcDate(now).Sub(utcDate(createdAt))/day) + 1
	s := strings.ToLower(service)

	switch {
	case strings.Contains(s, "viki"):
		switch {
		case daysActive >= 14:
			return "Account expired (14 days). Wait for a new one!", daysActive
		case daysActive == 13:
			return "Attention: last day of this login!", daysActive
		case daysActive >= 10:
			return fmt.Sprintf("Final cycle (%d/14 days).", daysActive), daysActive
		}
	case strings.Contains(s, "kocowa"):
		switch {
		case daysActive >= 30:
			return "Account expired. Wait for a new one!", daysActive
		case daysActive >= 28:
			return "Attention: the password changes soon!", daysActive
		}
	case strings.Contains(s, "iqiyi"):
		if daysActive >= 29 {
			return "Account update imminent.", daysActive
		}
	default:
		if daysActive >= 35 {
			return "Login is very old.", daysActive
		}
	}
	return "", daysActive
}

// ClassifyCredentialHealth returns the operator-facing renewal state of a
// credential. Unlike AccountAlert it floors the raw elapsed time, so a
// credential is on day 0 until a full 24 hours have passed.
func ClassifyCredentialHealth(service string, createdAt, now time.Time) model.CredentialHealth {
	daysActive := int(now.Sub(createdAt).Milliseconds() / day.Milliseconds())
	if now.Before(createdAt) && now.Sub(createdAt)%day != 0 {
		// Floor toward negative infinity for credentials dated in the future.
		daysActive--
	}

	s := strings.ToLower(service)
	cycle := cycleDefault
	switch {
	case strings.Contains(s, "viki"):
		cycle = cycleViki
	case strings.Contains(s, "kocowa"):
		cycle = cycleKocowa
	case strings.Contains(s, "iqiyi"):
		cycle = cycleIQIYI
	case strings.Contains(s, "wetv"):
		cycle = cycleWeTV
	case strings.Contains(s, "dramabox"):
		return model.CredentialHealth{
			Status:     model.HealthInfinite,
			Label:      "lifetime",
			DaysActive: daysActive,
		}
	}

	remaining := cycle - daysActive
	health := model.CredentialHealth{DaysActive: daysActive, DaysRemaining: remaining}

	switch {
	case remaining < 0:
		health.Status = model.HealthExpired
		health.Label = fmt.Sprintf("expired %dd ago", -remaining)
	case remaining == 0:
		health.Status = model.HealthExpired
		health.Label = "expires today"
	case remaining <= warningWindowDays:
		health.Status = model.HealthWarning
		health.Label = fmt.Sprintf("renew in %dd", remaining)
	default:
		health.Status = model.HealthOK
		health.Label = fmt.Sprintf("%d days left", remaining)
	}
	return health
}

// capacityAlert is attached to overflow assignments under the bucket strategy.
func capacityAlert(service string) string {
	return fmt.Sprintf("SYSTEM FULL: this login is shared by too many people. Create a new %s account urgently!", service)
}

// mergeAlerts joins a capacity alert and an age alert, capacity first.
func mergeAlerts(capacity, age string) string {
	switch {
	case capacity == "":
		return age
	case age == "":
		return capacity
	default:
		return capacity + alertSeparator + age
	}
}

// utcDate truncates t to midnight of its UTC calendar day.
func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
