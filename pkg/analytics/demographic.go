// pkg/analytics/demographic.go
package analytics

import (
	"sort"
	"time"

	"github.com/jinzhu/now"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// ageBin is a right-closed interval (Low, High]
type ageBin struct {
	Label     string
	Low, High int
}

// AgeGroups are the histogram bins. Ages of 0 and above 100 fall outside.
var AgeGroups = []ageBin{
	{"0-18", 0, 18},
	{"19-25", 18, 25},
	{"26-35", 25, 35},
	{"36-45", 35, 45},
	{"46-55", 45, 55},
	{"56-65", 55, 65},
	{"65+", 65, 100},
}

// AgeStats summarizes client ages
type AgeStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// Demographics is the age histogram and summary
type Demographics struct {
	Available bool     `json:"available"`
	Clients   int      `json:"clients"`
	Groups    []Count  `json:"groups"`
	Stats     AgeStats `json:"stats"`
}

// DemographicInsights bins client ages and computes mean, median, min and
// max over every client with an age
func DemographicInsights(clients *model.Table) Demographics {
	demo := Demographics{Groups: make([]Count, len(AgeGroups))}
	for i, bin := range AgeGroups {
		demo.Groups[i] = Count{Label: bin.Label}
	}
	if !hasColumns(clients, model.ColAge) {
		return demo
	}

	ages := make([]float64, 0, clients.Len())
	for _, row := range clients.Rows {
		age, ok := floatOf(row, model.ColAge)
		if !ok {
			continue
		}
		ages = append(ages, age)
		for i, bin := range AgeGroups {
			if age > float64(bin.Low) && age <= float64(bin.High) {
				demo.Groups[i].Count++
				break
			}
		}
	}
	if len(ages) == 0 {
		return demo
	}

	box := summarize(ages)
	demo.Available = true
	demo.Clients = box.Count
	demo.Stats = AgeStats{
		Mean:   box.Mean,
		Median: box.Median,
		Min:    int(box.Min),
		Max:    int(box.Max),
	}
	return demo
}

// Birthday is one client's next birthday
type Birthday struct {
	ClientID  int64     `json:"client_id"`
	Name      string    `json:"name"`
	Birthdate time.Time `json:"birthdate"`
	DaysUntil int       `json:"days_until"`
	Today     bool      `json:"today"`
}

// Birthdays lists upcoming birthdays, soonest first
type Birthdays struct {
	Available bool       `json:"available"`
	Upcoming  []Birthday `json:"upcoming"`
}

// UpcomingBirthdays computes the days until each client's next birthday.
// Clients without a birthdate are skipped. February 29 birthdays fall on
// March 1 in non-leap years.
func UpcomingBirthdays(clients *model.Table, today time.Time) Birthdays {
	out := Birthdays{Upcoming: []Birthday{}}
	if !hasColumns(clients, model.ColBirthdate) {
		return out
	}
	out.Available = true

	day := now.New(today.UTC()).BeginningOfDay()
	for _, row := range clients.Rows {
		birthdate, ok := timeOf(row, model.ColBirthdate)
		if !ok {
			continue
		}
		next := nextBirthday(birthdate, day)
		days := int(next.Sub(day).Hours() / 24)
		id, _ := clientIDOf(row)
		out.Upcoming = append(out.Upcoming, Birthday{
			ClientID:  id,
			Name:      displayName(row),
			Birthdate: birthdate,
			DaysUntil: days,
			Today:     days == 0,
		})
	}

	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		if out.Upcoming[i].DaysUntil != out.Upcoming[j].DaysUntil {
			return out.Upcoming[i].DaysUntil < out.Upcoming[j].DaysUntil
		}
		return out.Upcoming[i].ClientID < out.Upcoming[j].ClientID
	})
	return out
}

// nextBirthday returns the first anniversary on or after day. time.Date
// normalizes Feb 29 to Mar 1 in non-leap years.
func nextBirthday(birthdate, day time.Time) time.Time {
	next := time.Date(day.Year(), birthdate.Month(), birthdate.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(day) {
		next = time.Date(day.Year()+1, birthdate.Month(), birthdate.Day(), 0, 0, 0, 0, time.UTC)
	}
	return next
}
