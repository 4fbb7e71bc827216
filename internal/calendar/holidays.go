package calendar

import "time"

// holidayRules maps a country code to its holiday table builder.
var holidayRules = map[string]func(year int) map[time.Time]string{
	"PE": peruHolidays,
}

func peruHolidays(year int) map[time.Time]string {
	d := func(month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	table := map[time.Time]string{
		d(time.January, 1):   "Año Nuevo",
		d(time.May, 1):       "Día del Trabajo",
		d(time.June, 29):     "San Pedro y San Pablo",
		d(time.July, 28):     "Fiestas Patrias",
		d(time.July, 29):     "Fiestas Patrias",
		d(time.August, 30):   "Santa Rosa de Lima",
		d(time.October, 8):   "Combate de Angamos",
		d(time.November, 1):  "Todos los Santos",
		d(time.December, 8):  "Inmaculada Concepción",
		d(time.December, 25): "Navidad",
	}
	// Declared national holidays since 2022/2023.
	if year >= 2022 {
		table[d(time.August, 6)] = "Batalla de Junín"
		table[d(time.December, 9)] = "Batalla de Ayacucho"
	}
	if year >= 2023 {
		table[d(time.July, 23)] = "Día de la Fuerza Aérea"
	}
	easter := easterSunday(year)
	table[easter.AddDate(0, 0, -3)] = "Jueves Santo"
	table[easter.AddDate(0, 0, -2)] = "Viernes Santo"
	return table
}

// easterSunday computes Easter for the Gregorian calendar (anonymous algorithm).
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
