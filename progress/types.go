package progress

import (
	"time"

	"github.com/jonwraymond/biasdaily/content"
)

// DateLayout is the calendar date format used for streaks and the daily
// cache.
const DateLayout = "2006-01-02"

// Favorite marks a bias the learner starred.
type Favorite struct {
	BiasID  string `json:"biasId"`
	AddedAt int64  `json:"addedAt"`
}

// BiasProgress tracks how often a bias was viewed and whether it is
// mastered. ViewedAt is the Unix millisecond time of the last view.
type BiasProgress struct {
	BiasID    string `json:"biasId"`
	ViewedAt  int64  `json:"viewedAt"`
	ViewCount int    `json:"viewCount"`
	Mastered  bool   `json:"mastered"`
}

// Streak counts consecutive days with at least one visit.
type Streak struct {
	CurrentStreak    int    `json:"currentStreak"`
	LongestStreak    int    `json:"longestStreak"`
	LastVisitDate    string `json:"lastVisitDate"`
	TotalDaysVisited int    `json:"totalDaysVisited"`
}

// Stats summarizes progress for display.
type Stats struct {
	TotalBiasesRead int    `json:"totalBiasesRead"`
	CurrentStreak   int    `json:"currentStreak"`
	LongestStreak   int    `json:"longestStreak"`
	LastViewedDate  string `json:"lastViewedDate,omitempty"`
	MasteredCount   int    `json:"masteredCount"`
}

// Settings holds learner preferences.
type Settings struct {
	Theme                string  `json:"theme"`
	BackgroundStyle      string  `json:"backgroundStyle"`
	DailyReminder        bool    `json:"dailyReminder"`
	MixUserBiasesInDaily bool    `json:"mixUserBiasesInDaily"`
	VoiceEnabled         bool    `json:"voiceEnabled"`
	VoiceRate            float64 `json:"voiceRate"`
	VoicePitch           float64 `json:"voicePitch"`
	VoiceName            string  `json:"voiceName,omitempty"`
	Timezone             string  `json:"timezone,omitempty"`
	TimezoneAutoDetect   bool    `json:"timezoneAutoDetect"`
}

// DefaultSettings returns the preferences of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Theme:                "system",
		BackgroundStyle:      "gradient",
		DailyReminder:        false,
		MixUserBiasesInDaily: true,
		VoiceEnabled:         true,
		VoiceRate:            0.9,
		VoicePitch:           1.0,
		VoiceName:            "Google US English",
		Timezone:             "UTC",
		TimezoneAutoDetect:   false,
	}
}

// Location resolves Timezone, falling back to UTC when it is empty or
// unknown.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Export is a full snapshot of local state.
type Export struct {
	UserBiases []content.Bias `json:"userBiases"`
	Favorites  []Favorite     `json:"favorites"`
	Settings   *Settings      `json:"settings,omitempty"`
	Progress   []BiasProgress `json:"progress"`
	Streak     *Streak        `json:"streak,omitempty"`
	ExportedAt int64          `json:"exportedAt"`
}
