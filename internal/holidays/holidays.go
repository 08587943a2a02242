// Package holidays 计算沃州（Canton de Vaud）的法定节假日，
// 供规则评估时判定节假日日型使用。
package holidays

import "time"

type Holiday struct {
	Code string    `json:"code"`
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// easterSunday 使用 Meeus/Jones/Butcher 算法计算格里高利历的复活节
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
	day := 1 + (h+l-7*m+114)%31
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// thirdMondayOfSeptember 返回九月的第三个星期一（联邦斋戒节的星期一）
func thirdMondayOfSeptember(year int) time.Time {
	first := time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

// ForYear 返回沃州某一年的全部法定节假日
func ForYear(year int) []Holiday {
	easter := easterSunday(year)

	return []Holiday{
		{Code: "new_years_day", Date: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), Name: "Nouvel An"},
		{Code: "berchtolds_day", Date: time.Date(year, time.January, 2, 0, 0, 0, 0, time.UTC), Name: "Saint Berchtold"},
		{Code: "vaud_independence_day", Date: time.Date(year, time.January, 24, 0, 0, 0, 0, time.UTC), Name: "Fête de l'Indépendance vaudoise"},
		{Code: "good_friday", Date: easter.AddDate(0, 0, -2), Name: "Vendredi saint"},
		{Code: "easter_monday", Date: easter.AddDate(0, 0, 1), Name: "Lundi de Pâques"},
		{Code: "ascension_day", Date: easter.AddDate(0, 0, 39), Name: "Ascension"},
		{Code: "whit_monday", Date: easter.AddDate(0, 0, 50), Name: "Lundi de Pentecôte"},
		{Code: "swiss_national_day", Date: time.Date(year, time.August, 1, 0, 0, 0, 0, time.UTC), Name: "Fête nationale suisse"},
		{Code: "federal_fast_monday", Date: thirdMondayOfSeptember(year), Name: "Lundi du Jeûne fédéral"},
		{Code: "christmas_day", Date: time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC), Name: "Noël"},
		{Code: "st_stephens_day", Date: time.Date(year, time.December, 26, 0, 0, 0, 0, time.UTC), Name: "Saint Étienne"},
	}
}

// ForMonth 返回某个月内的节假日日期（YYYY-MM-DD），month 形如 YYYY-MM
func ForMonth(month string) []string {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil
	}

	dates := []string{}
	for _, holiday := range ForYear(first.Year()) {
		if holiday.Date.Month() == first.Month() {
			dates = append(dates, holiday.Date.Format("2006-01-02"))
		}
	}
	return dates
}
