// Package achievements holds the badge rule table, the evaluation context
// builder and the evaluator that decides which badges a user unlocks.
package achievements

import (
	"time"

	"drinktab/core"
)

type check = func(c *core.EvalContext) (bool, error)

func pure(f func(c *core.EvalContext) bool) check {
	return func(c *core.EvalContext) (bool, error) { return f(c), nil }
}

func purchasesAtLeast(n int) check {
	return pure(func(c *core.EvalContext) bool { return c.Count(core.TxPurchase) >= n })
}

func depositsAtLeast(n int) check {
	return pure(func(c *core.EvalContext) bool { return c.Count(core.TxDeposit) >= n })
}

func categoryAtLeast(cat core.Category, n int) check {
	return func(c *core.EvalContext) (bool, error) {
		count := 0
		for _, tx := range c.Transactions {
			if tx.Type != core.TxPurchase {
				continue
			}
			got, err := c.CategoryOf(tx)
			if err != nil {
				return false, err
			}
			if got == cat {
				count++
			}
		}
		return count >= n, nil
	}
}

func distinctCategories(n int) check {
	return func(c *core.EvalContext) (bool, error) {
		seen := make(map[core.Category]struct{})
		for _, tx := range c.Transactions {
			if tx.Type != core.TxPurchase {
				continue
			}
			cat, err := c.CategoryOf(tx)
			if err != nil {
				return false, err
			}
			seen[cat] = struct{}{}
		}
		return len(seen) >= n, nil
	}
}

func balance(pred func(b core.Money) bool) check {
	return pure(func(c *core.EvalContext) bool { return pred(c.User.Balance) })
}

// depositTransition is only evaluated when the trigger is a deposit.
func depositTransition(pred func(before, after, amount core.Money) bool) check {
	return pure(func(c *core.EvalContext) bool {
		if !c.TriggerIs(core.TxDeposit) {
			return false
		}
		return pred(c.BalanceBefore(), c.User.Balance, c.Trigger.Amount)
	})
}

// purchaseAt is only evaluated when the trigger is a purchase.
func purchaseAt(pred func(l core.LocalTime) bool) check {
	return pure(func(c *core.EvalContext) bool {
		if !c.TriggerIs(core.TxPurchase) {
			return false
		}
		return pred(c.Local(c.Trigger.CreatedAt))
	})
}

func hourIn(from, to int) check {
	return purchaseAt(func(l core.LocalTime) bool { return l.Hour >= from && l.Hour < to })
}

func purchaseOn(m time.Month, day int) check {
	return purchaseAt(func(l core.LocalTime) bool { return l.Date.Month == m && l.Date.Day == day })
}

// history runs a pattern detector over all purchases, localized and sorted.
func history(pred func(ls []core.LocalTime) bool) check {
	return pure(func(c *core.EvalContext) bool {
		ps := c.SortedPurchases()
		if len(ps) == 0 {
			return false
		}
		ls := make([]core.LocalTime, len(ps))
		for i, p := range ps {
			ls[i] = c.Local(p.CreatedAt)
		}
		return pred(ls)
	})
}

// depositAtPosition matches a deposit trigger whose 1-based position among all
// transactions, sorted chronologically, is one of positions.
func depositAtPosition(positions ...int) check {
	return pure(func(c *core.EvalContext) bool {
		if !c.TriggerIs(core.TxDeposit) {
			return false
		}
		for i, tx := range c.Sorted() {
			if tx != *c.Trigger {
				continue
			}
			for _, p := range positions {
				if i+1 == p {
					return true
				}
			}
			return false
		}
		return false
	})
}

// unlockedAtLeast counts badges unlocked before the current evaluation.
func unlockedAtLeast(n int) check {
	return pure(func(c *core.EvalContext) bool { return len(c.User.Unlocked) >= n })
}

var defaultRules = []core.Rule{
	{ID: "erster_schluck", Name: "Erster Schluck", Description: "Kaufe dein erstes Getränk.", Check: purchasesAtLeast(1)},
	{ID: "stammgast", Name: "Stammgast", Description: "Tätige 10 Käufe.", Check: purchasesAtLeast(10)},
	{ID: "hundertschaft", Name: "Hundertschaft", Description: "Tätige 100 Käufe.", Check: purchasesAtLeast(100)},
	{ID: "leet", Name: "1337", Description: "Tätige 1337 Käufe.", Check: purchasesAtLeast(1337)},
	{ID: "sparschwein", Name: "Sparschwein", Description: "Zahle zum ersten Mal Geld ein.", Check: depositsAtLeast(1)},
	{ID: "dauerauftrag", Name: "Dauerauftrag", Description: "Zahle 10 Mal Geld ein.", Check: depositsAtLeast(10)},
	{ID: "hopfenfreund", Name: "Hopfenfreund", Description: "Kaufe 10 alkoholische Getränke.", Check: categoryAtLeast(core.CategoryAlcohol, 10)},
	{ID: "braumeister", Name: "Braumeister", Description: "Kaufe 100 alkoholische Getränke.", Check: categoryAtLeast(core.CategoryAlcohol, 100)},
	{ID: "zuckerschock", Name: "Zuckerschock", Description: "Kaufe 10 Softdrinks.", Check: categoryAtLeast(core.CategorySoftdrink, 10)},
	{ID: "feinschmecker", Name: "Feinschmecker", Description: "Kaufe 10 Mal Essen.", Check: categoryAtLeast(core.CategoryFood, 10)},
	{ID: "knabberkoenig", Name: "Knabberkönig", Description: "Kaufe 10 Snacks.", Check: categoryAtLeast(core.CategorySnack, 10)},
	{ID: "exot", Name: "Exot", Description: "Kaufe etwas aus der Kategorie Sonstiges.", Check: categoryAtLeast(core.CategoryOther, 1)},

	{ID: "kreditwuerdig", Name: "Kreditwürdig", Description: "Rutsche unter -10,00 €.", Check: balance(func(b core.Money) bool { return b < -1000 })},
	{ID: "pleitegeier", Name: "Pleitegeier", Description: "Rutsche unter -20,00 €.", Check: balance(func(b core.Money) bool { return b < -2000 })},
	{ID: "schwarze_zahlen", Name: "Schwarze Zahlen", Description: "Habe ein positives Guthaben.", Check: balance(func(b core.Money) bool { return b > 0 })},
	{ID: "grossverdiener", Name: "Großverdiener", Description: "Habe mindestens 100,00 € Guthaben.", Check: balance(func(b core.Money) bool { return b >= 10000 })},

	{ID: "wendepunkt", Name: "Wendepunkt", Description: "Komme mit einer Einzahlung aus den Schulden ins Plus.", Check: depositTransition(func(before, after, _ core.Money) bool {
		return before < 0 && after > 0
	})},
	{ID: "finanz_phoenix", Name: "Finanz-Phönix", Description: "Steige mit einer Einzahlung von unter -20,00 € auf mindestens 0 €.", Check: depositTransition(func(before, after, _ core.Money) bool {
		return before < -2000 && after >= 0
	})},
	{ID: "passendes_kleingeld", Name: "Passendes Kleingeld", Description: "Gleiche deine Schulden exakt auf 0,00 € aus.", Check: depositTransition(func(before, after, _ core.Money) bool {
		return before < 0 && after == 0
	})},
	{ID: "rettungsschirm", Name: "Rettungsschirm", Description: "Zahle im Minus mindestens 50,00 € auf einmal ein.", Check: depositTransition(func(before, _, amount core.Money) bool {
		return before < 0 && amount >= 5000
	})},

	{ID: "morgengrauen", Name: "Morgengrauen", Description: "Kaufe zwischen 4 und 6 Uhr.", Check: hourIn(4, 6)},
	{ID: "fruehschoppen", Name: "Frühschoppen", Description: "Kaufe zwischen 6 und 10 Uhr.", Check: hourIn(6, 10)},
	{ID: "mittagspause", Name: "Mittagspause", Description: "Kaufe zwischen 12 und 13 Uhr.", Check: hourIn(12, 13)},
	{ID: "feierabend", Name: "Feierabend", Description: "Kaufe zwischen 16 und 18 Uhr.", Check: hourIn(16, 18)},
	{ID: "geisterstunde", Name: "Geisterstunde", Description: "Kaufe genau um Mitternacht.", Check: purchaseAt(func(l core.LocalTime) bool {
		return (l.Hour == 23 && l.Minute >= 59) || (l.Hour == 0 && l.Minute < 1)
	})},
	{ID: "weihnachten", Name: "Frohe Weihnachten", Description: "Kaufe am 25. Dezember.", Check: purchaseOn(time.December, 25)},
	{ID: "neujahr", Name: "Prost Neujahr", Description: "Kaufe am 1. Januar.", Check: purchaseOn(time.January, 1)},
	{ID: "halloween", Name: "Halloween", Description: "Kaufe am 31. Oktober.", Check: purchaseOn(time.October, 31)},

	{ID: "tagestour", Name: "Tagestour", Description: "Kaufe 5 Mal an einem Tag mit jeweils mindestens 15 Minuten Abstand.", Check: history(func(ls []core.LocalTime) bool {
		return sameDayBurst(ls, 5, 15*time.Minute)
	})},
	{ID: "schnellfeuer", Name: "Schnellfeuer", Description: "Drei Käufe im Abstand von je 5 Minuten innerhalb einer Stunde.", Check: history(func(ls []core.LocalTime) bool {
		return rapidFire(ls, 5*time.Minute, time.Hour)
	})},
	{ID: "uhrwerk", Name: "Uhrwerk", Description: "Drei Käufe mit exakt gleichem Abstand.", Check: history(func(ls []core.LocalTime) bool {
		return equalGaps(ls, 2)
	})},
	{ID: "wochenendkrieger", Name: "Wochenendkrieger", Description: "Kaufe an einem Samstag und dem darauffolgenden Sonntag.", Check: history(weekendPair)},
	{ID: "dauerdurst", Name: "Dauerdurst", Description: "Kaufe an 15 Tagen jeweils mindestens 5 Mal.", Check: history(func(ls []core.LocalTime) bool {
		return busyDays(ls, 5) >= 15
	})},
	{ID: "monats_streak", Name: "Monats Streak", Description: "Kaufe in 4 aufeinanderfolgenden Wochen.", Check: history(func(ls []core.LocalTime) bool {
		return weekStreak(ls, 4)
	})},
	{ID: "fuenf_am_stueck", Name: "Fünf am Stück", Description: "Kaufe an 5 aufeinanderfolgenden Tagen.", Check: history(func(ls []core.LocalTime) bool {
		return dayStreak(ls, 5)
	})},
	{ID: "sturztrunk", Name: "Sturztrunk", Description: "Kaufe 5 Mal innerhalb von 5 Minuten.", Check: history(func(ls []core.LocalTime) bool {
		return tightCluster(ls, 5, 5*time.Minute)
	})},
	{ID: "montagsmuffel", Name: "Montagsmuffel", Description: "Kaufe mehr als 3 Mal an einem Montag.", Check: history(func(ls []core.LocalTime) bool {
		return countWeekday(ls, time.Monday) > 3
	})},
	{ID: "vier_jahreszeiten", Name: "Vier Jahreszeiten", Description: "Kaufe in jeder Jahreszeit.", Check: history(allSeasons)},
	{ID: "gewohnheitstier", Name: "Gewohnheitstier", Description: "Kaufe an 5 Tagen in Folge jeweils zur gleichen Uhrzeit (±30 Minuten).", Check: history(func(ls []core.LocalTime) bool {
		return habitStreak(ls, 5, 30)
	})},

	{ID: "lucky_seven", Name: "Lucky Seven", Description: "Deine 7., 77. oder 777. Buchung ist eine Einzahlung.", Check: depositAtPosition(7, 77, 777)},
	{ID: "kategorienvielfalt", Name: "Kategorienvielfalt", Description: "Kaufe aus allen 5 Kategorien.", Check: distinctCategories(5)},

	{ID: "sammler", Name: "Sammler", Description: "Schalte 10 Erfolge frei.", Check: unlockedAtLeast(10)},
	{ID: "jaeger", Name: "Jäger", Description: "Schalte 20 Erfolge frei.", Check: unlockedAtLeast(20)},
	{ID: "trophaeenschrank", Name: "Trophäenschrank", Description: "Schalte 30 Erfolge frei.", Check: unlockedAtLeast(30)},
}

// Default returns the built-in rule set in evaluation order. The returned
// slice is a copy; the rules themselves are shared and stateless.
func Default() []core.Rule {
	return append([]core.Rule(nil), defaultRules...)
}

// Lookup finds a built-in rule by id.
func Lookup(id string) (core.Rule, bool) {
	for _, r := range defaultRules {
		if r.ID == id {
			return r, true
		}
	}
	return core.Rule{}, false
}
