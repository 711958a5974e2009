// Package legacy serves the deprecated /old_convert formula endpoint.
package legacy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"portalia/http-server/response"
	"portalia/internal/service/convert"
	"portalia/internal/service/fallback"
)

type RateSource interface {
	Rates() fallback.Rates
}

// OldConvert: GET /old_convert?tjm=|brut=|net=, ставки по умолчанию переопределяются параметрами.
func OldConvert(log *slog.Logger, src RateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.convert.legacy.OldConvert"

		log := log.With(slog.String("op", op))
		q := r.URL.Query()

		in, rates, err := parse(q, src.Rates())
		if err != nil {
			log.Warn("invalid old_convert request", slog.String("error", err.Error()))
			response.Error(w, r, err)
			return
		}

		out, err := fallback.Compute(in, rates)
		if err != nil {
			log.Warn("invalid old_convert rates", slog.String("error", err.Error()))
			response.Error(w, r, fmt.Errorf("%w: %v", convert.ErrValidation, err))
			return
		}

		render.JSON(w, r, out)
	}
}

func parse(q url.Values, rates fallback.Rates) (fallback.Input, fallback.Rates, error) {
	var in fallback.Input
	var err error

	floats := []struct {
		key string
		dst **float64
	}{
		{"tjm", &in.DailyRate},
		{"brut", &in.Gross},
		{"net", &in.Net},
	}
	for _, f := range floats {
		if *f.dst, err = optFloat(q, f.key); err != nil {
			return in, rates, err
		}
	}

	overrides := []struct {
		key string
		dst *float64
	}{
		{"frais_fixes", &rates.FixedFeeRate},
		{"provisions", &rates.ProvisionRate},
		{"charges_sal", &rates.EmployeeRate},
		{"charges_pat", &rates.EmployerRate},
	}
	for _, o := range overrides {
		v, err := optFloat(q, o.key)
		if err != nil {
			return in, rates, err
		}
		if v != nil {
			*o.dst = *v
		}
	}

	if s := strings.TrimSpace(q.Get("jours")); s != "" {
		days, err := strconv.Atoi(s)
		if err != nil {
			return in, rates, fmt.Errorf("%w: jours must be an integer, got %q", convert.ErrValidation, s)
		}
		rates.WorkedDays = days
	}

	return in, rates, nil
}

func optFloat(q url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	v, ok := convert.ParseNumber(s)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a number, got %q", convert.ErrValidation, key, s)
	}
	return v, nil
}
