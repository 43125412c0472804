package ibflex

// anonymize.go: genera un extracto de ejemplo sin importes reales.
//
// Sobre un NAV sintético:
//   - 85% repartido a partes iguales entre STK/ADR/REIT (acciones enteras)
//   - 15% repartido entre opciones (contratos enteros, negativos si son Short)
// Se recalculan positionValue, costBasisMoney, percentOfNAV y fifoPnlUnrealized,
// y el resumen de equity queda cuadrado con la caja resultante.

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// DefaultNAV es el NAV sintético por defecto.
	DefaultNAV = decimal.NewFromInt(10000)

	equityShare       = decimal.RequireFromString("0.85")
	defaultMultiplier = decimal.NewFromInt(100)
	one               = decimal.NewFromInt(1)
	hundred           = decimal.NewFromInt(100)
)

// AnonymizeResult resume el extracto generado.
type AnonymizeResult struct {
	NAV            decimal.Decimal
	TotalPositions decimal.Decimal
	Cash           decimal.Decimal
	Equities       int
	Options        int
}

// Anonymize reescribe el extracto de r en w con importes sintéticos para nav.
// El resto del documento se conserva; la declaración XML se omite.
func Anonymize(r io.Reader, w io.Writer, nav decimal.Decimal) (AnonymizeResult, error) {
	if !nav.IsPositive() {
		return AnonymizeResult{}, fmt.Errorf("ibflex.Anonymize: nav must be positive, got %s", nav)
	}
	src, err := io.ReadAll(r)
	if err != nil {
		return AnonymizeResult{}, fmt.Errorf("ibflex.Anonymize: read: %w", err)
	}

	positions, err := collectPositions(src)
	if err != nil {
		return AnonymizeResult{}, err
	}
	if len(positions) == 0 {
		return AnonymizeResult{}, ErrNoPositions
	}

	res := AnonymizeResult{NAV: nav}
	updates := rewritePositions(positions, nav, &res)

	total := decimal.Zero
	for i, p := range positions {
		pv := p["positionValue"]
		if v, ok := updates[i]["positionValue"]; ok {
			pv = v
		}
		total = total.Add(number(pv))
	}
	cash := nav.Sub(total).RoundBank(2)
	res.TotalPositions = total
	res.Cash = cash

	summary := map[string]string{
		"cash":       cash.StringFixed(2),
		"stock":      total.StringFixed(2),
		"total":      total.Add(cash).StringFixed(2),
		"totalLong":  total.StringFixed(2),
		"totalShort": "0",
	}

	if err := rewriteDocument(src, w, updates, summary); err != nil {
		return AnonymizeResult{}, err
	}
	return res, nil
}

// collectPositions devuelve los atributos de cada OpenPosition en orden de documento.
func collectPositions(src []byte) ([]map[string]string, error) {
	var out []map[string]string
	dec := xml.NewDecoder(bytes.NewReader(src))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ibflex.Anonymize: parse: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == elemOpenPosition {
			out = append(out, attrMap(se.Attr))
		}
	}
}

// rewritePositions calcula los atributos nuevos por índice de OpenPosition.
func rewritePositions(positions []map[string]string, nav decimal.Decimal, res *AnonymizeResult) map[int]map[string]string {
	var equities, options []int
	for i, p := range positions {
		cat := domain.AssetCategory(p["assetCategory"])
		switch {
		case cat.IsEquity():
			equities = append(equities, i)
		case cat == domain.CategoryOption:
			options = append(options, i)
		}
	}
	res.Equities, res.Options = len(equities), len(options)

	equityNAV := nav.Mul(equityShare)
	optionNAV := nav.Sub(equityNAV)

	updates := make(map[int]map[string]string, len(positions))

	if len(equities) > 0 {
		perEquity := equityNAV.Div(decimal.NewFromInt(int64(len(equities)))).RoundBank(2)
		for _, i := range equities {
			updates[i] = anonymizeEquity(positions[i], perEquity, nav)
		}
	}
	if len(options) > 0 {
		perOption := optionNAV.Div(decimal.NewFromInt(int64(len(options)))).RoundBank(2)
		for _, i := range options {
			updates[i] = anonymizeOption(positions[i], perOption, nav)
		}
	}
	return updates
}

func anonymizeEquity(p map[string]string, target, nav decimal.Decimal) map[string]string {
	mark := number(p["markPrice"])
	qty := one
	if mark.IsPositive() {
		qty = target.Div(mark).Round(0)
		if qty.IsZero() {
			qty = one
		}
	}

	value := qty.Mul(mark).RoundBank(2)
	costPrice := number(p["costBasisPrice"])
	if costPrice.IsZero() {
		costPrice = mark
	}
	costMoney := qty.Mul(costPrice).RoundBank(2)

	return map[string]string{
		"position":          qty.String(),
		"positionValue":     value.StringFixed(2),
		"costBasisMoney":    costMoney.StringFixed(2),
		"percentOfNAV":      value.Div(nav).Mul(hundred).RoundBank(2).StringFixed(2),
		"fifoPnlUnrealized": value.Sub(costMoney).RoundBank(2).StringFixed(2),
	}
}

func anonymizeOption(p map[string]string, target, nav decimal.Decimal) map[string]string {
	mark := number(p["markPrice"])
	mult := number(p["multiplier"])
	if mult.IsZero() {
		mult = defaultMultiplier
	}

	contracts := one
	if mark.IsPositive() {
		contracts = target.Div(mark.Mul(mult)).Round(0)
		if contracts.IsZero() {
			contracts = one
		}
	}

	value := contracts.Mul(mark).Mul(mult).RoundBank(2)
	position := contracts
	if strings.EqualFold(p["side"], "short") {
		position = contracts.Neg()
		value = value.Neg()
	}

	costPrice := number(p["costBasisPrice"])
	if costPrice.IsZero() {
		costPrice = number(p["openPrice"])
		if costPrice.IsZero() && !mark.IsZero() {
			costPrice = mark
		}
	}
	costMoney := contracts.Abs().Mul(costPrice).Mul(mult).RoundBank(2)

	return map[string]string{
		"position":          position.String(),
		"positionValue":     value.StringFixed(2),
		"costBasisMoney":    costMoney.StringFixed(2),
		"percentOfNAV":      value.Abs().Div(nav).Mul(hundred).RoundBank(2).StringFixed(2),
		"fifoPnlUnrealized": value.Sub(costMoney).RoundBank(2).StringFixed(2),
	}
}

// rewriteDocument copia src a w token a token aplicando los cambios de atributos.
func rewriteDocument(src []byte, w io.Writer, updates map[int]map[string]string, summary map[string]string) error {
	dec := xml.NewDecoder(bytes.NewReader(src))
	enc := xml.NewEncoder(w)

	idx := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("ibflex.Anonymize: parse: %w", err)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
		case xml.StartElement:
			switch t.Name.Local {
			case elemOpenPosition:
				t.Attr = setAttrs(t.Attr, updates[idx])
				idx++
			case elemEquitySummary:
				t.Attr = setAttrs(t.Attr, summary)
			}
			tok = t
		}

		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return fmt.Errorf("ibflex.Anonymize: write: %w", err)
		}
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("ibflex.Anonymize: flush: %w", err)
	}
	return nil
}

// setAttrs sustituye los valores existentes y añade los que falten, en orden estable.
func setAttrs(attrs []xml.Attr, values map[string]string) []xml.Attr {
	if len(values) == 0 {
		return attrs
	}
	out := make([]xml.Attr, 0, len(attrs)+len(values))
	done := make(map[string]bool, len(values))
	for _, a := range attrs {
		if v, ok := values[a.Name.Local]; ok {
			a.Value = v
			done[a.Name.Local] = true
		}
		out = append(out, a)
	}
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if !done[key] {
			out = append(out, xml.Attr{Name: xml.Name{Local: key}, Value: values[key]})
		}
	}
	return out
}
