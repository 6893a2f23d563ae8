package receipt

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Formatter форматирует суммы по правилам валюты и локали.
type Formatter struct {
	printer *message.Printer
	// point: десятичный разделитель локали.
	point string
}

// NewFormatter создаёт форматтер для языка tag.
func NewFormatter(tag language.Tag) *Formatter {
	printer := message.NewPrinter(tag)
	return &Formatter{printer: printer, point: decimalPoint(printer)}
}

var defaultFormatter = NewFormatter(language.English)

var maxWhole = decimal.NewFromInt(math.MaxInt64)

// Money возвращает сумму с символом валюты и точностью, принятой для неё.
// Для неизвестного кода валюты печатает код и два знака после запятой.
func (f *Formatter) Money(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return strings.TrimSpace(code + " " + amount.StringFixed(domain.MoneyScale))
	}
	scale, _ := currency.Standard.Rounding(unit)
	symbol := f.printer.Sprint(currency.NarrowSymbol(unit))
	return symbol + f.digits(amount.Round(int32(scale)), int32(scale))
}

// digits печатает сумму без перевода в float64: целую часть группирует
// принтер локали, дробная берётся из десятичной записи.
func (f *Formatter) digits(amount decimal.Decimal, scale int32) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(scale)
	whole, frac, _ := strings.Cut(fixed, ".")
	if amount.Truncate(0).LessThanOrEqual(maxWhole) {
		whole = f.printer.Sprint(number.Decimal(amount.Truncate(0).IntPart()))
	}
	if scale <= 0 {
		return sign + whole
	}
	return sign + whole + f.point + frac
}

// decimalPoint вырезает разделитель из образца "0.5" в формате локали.
func decimalPoint(p *message.Printer) string {
	sample := p.Sprint(number.Decimal(0.5, number.Scale(1)))
	_, first := utf8.DecodeRuneInString(sample)
	_, last := utf8.DecodeLastRuneInString(sample)
	if len(sample) <= first+last {
		return "."
	}
	return sample[first : len(sample)-last]
}
