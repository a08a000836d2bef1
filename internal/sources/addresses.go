package sources

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
	"github.com/HSLdevcom/digitransit-geocoder/internal/projection"
)

// AddressAdapter reads the municipal address register CSV. The feed is
// Latin-1 with GK25FIN coordinates in the N/E columns:
//
//	katunimi,osoitenumero,osoitenumero2,kiinteiston_jakokirjain,kaupunki,
//	yhdistekentta,N,E,gatan,staden,tyyppi,tyyppi_selite,ajo_pvm
//
// osoitenumero2 closes a housenumber range sharing one geopoint and
// kiinteiston_jakokirjain separates several points on one number.
type AddressAdapter struct{}

func (AddressAdapter) Name() string { return "addresses" }

func (a AddressAdapter) Parse(ctx context.Context, path string) (*Batch, Diag, error) {
	diag := Diag{Source: a.Name()}
	f, err := os.Open(path)
	if err != nil {
		return nil, diag, &ParseError{Source: a.Name(), Err: err}
	}
	defer f.Close()

	rd := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	rd.FieldsPerRecord = -1
	header, err := rd.Read()
	if err != nil {
		return nil, diag, &ParseError{Source: a.Name(), Err: err}
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"katunimi", "osoitenumero", "kaupunki", "N", "E"} {
		if _, ok := col[required]; !ok {
			return nil, diag, &ParseError{Source: a.Name(), Err: errMissingColumn(required)}
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	batch := &Batch{}
	now := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return nil, diag, err
		}
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv framing error on one line; skip it, the reader resyncs
			diag.Skipped++
			continue
		}
		n, errN := strconv.ParseFloat(field(rec, "N"), 64)
		e, errE := strconv.ParseFloat(field(rec, "E"), 64)
		street := field(rec, "katunimi")
		if errN != nil || errE != nil || street == "" {
			// geometry is mandatory for point addresses
			diag.Skipped++
			continue
		}
		number, _ := strconv.Atoi(field(rec, "osoitenumero"))
		numberEnd, _ := strconv.Atoi(field(rec, "osoitenumero2"))
		if number == 0 {
			logger.L().Debug("address_without_number", "street", street)
		}
		batch.Addresses = append(batch.Addresses, model.Address{
			StreetFi:       street,
			StreetSv:       field(rec, "gatan"),
			Number:         number,
			NumberEnd:      numberEnd,
			Unit:           field(rec, "kiinteiston_jakokirjain"),
			MunicipalityFi: field(rec, "kaupunki"),
			MunicipalitySv: field(rec, "staden"),
			Location:       projection.FromGK25(n, e),
			Provenance:     model.Provenance{Source: a.Name(), ImportedAt: now},
		})
		diag.Parsed++
	}
	return batch, diag, nil
}
