package ibflex

// parser.go: lectura de extractos Flex Query (XML) de Interactive Brokers.
//
// Solo interesan dos elementos:
//   - OpenPosition: una posición abierta por elemento, todo en atributos.
//   - EquitySummaryByReportDateInBase: resumen de NAV; la caja sale del primero.
// Las filas LOT repiten el detalle de las SUMMARY y se ignoran.

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNoPositions se devuelve cuando el extracto no contiene OpenPosition.
var ErrNoPositions = errors.New("ibflex: no positions found")

const (
	elemOpenPosition  = "OpenPosition"
	elemEquitySummary = "EquitySummaryByReportDateInBase"
	elemAccountInfo   = "AccountInformation"
)

// Parse lee un extracto Flex y devuelve su snapshot.
func Parse(r io.Reader) (domain.Snapshot, error) {
	var snap domain.Snapshot
	cashSeen := false

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("ibflex.Parse: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		attrs := attrMap(se.Attr)

		switch se.Name.Local {
		case elemOpenPosition:
			if strings.EqualFold(attrs["levelOfDetail"], "LOT") {
				continue
			}
			snap.Positions = append(snap.Positions, positionFromAttrs(attrs))
		case elemEquitySummary:
			if !cashSeen {
				snap.Cash = number(attrs["cash"])
				cashSeen = true
			}
		case elemAccountInfo:
			if snap.Currency == "" {
				snap.Currency = attrs["currency"]
			}
		}
	}

	if len(snap.Positions) == 0 {
		return domain.Snapshot{}, ErrNoPositions
	}
	return snap, nil
}

func positionFromAttrs(a map[string]string) domain.Position {
	return domain.Position{
		Symbol:         strings.TrimSpace(a["symbol"]),
		Description:    a["description"],
		Category:       domain.AssetCategory(a["assetCategory"]),
		Currency:       a["currency"],
		Quantity:       number(a["position"]),
		MarkPrice:      number(a["markPrice"]),
		CostBasisPrice: number(a["costBasisPrice"]),
		CostBasisMoney: number(a["costBasisMoney"]),
		MarketValue:    number(a["positionValue"]),
		PercentOfNAV:   number(a["percentOfNAV"]),
		UnrealizedPnL:  number(a["fifoPnlUnrealized"]),
	}
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// number parsea un atributo numérico; vacío o inválido vale 0.
func number(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}
