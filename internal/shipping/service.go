package shipping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/redisx"
)

// API is the subset of the carrier client the service needs.
type API interface {
	Provider() string
	Wilayas(ctx context.Context) ([]Wilaya, error)
	Communes(ctx context.Context, wilayaID int) ([]Commune, error)
	Centers(ctx context.Context, wilayaID int) ([]Center, error)
	Fees(ctx context.Context, fromWilaya, toWilaya int) (Fees, error)
	CreateParcel(ctx context.Context, p Parcel) (ParcelResult, error)
	Parcel(ctx context.Context, tracking string) (ParcelStatus, error)
}

const (
	MinWilaya = 1
	MaxWilaya = 58
)

type Service struct {
	api         API
	rdb         redis.Cmdable
	cb          *gobreaker.CircuitBreaker
	fromWilaya  int
	fallbackFee decimal.Decimal
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

type ServiceConfig struct {
	FromWilaya  int
	FallbackFee decimal.Decimal
}

// NewService wires the carrier API behind a circuit breaker that opens after
// five consecutive failures and probes again after 30 seconds. rdb may be
// nil to disable caching.
func NewService(api API, rdb redis.Cmdable, cfg ServiceConfig, m *metrics.Metrics, log zerolog.Logger) *Service {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "shipping-" + api.Provider(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state")
		},
	})
	return &Service{
		api:         api,
		rdb:         rdb,
		cb:          cb,
		fromWilaya:  cfg.FromWilaya,
		fallbackFee: cfg.FallbackFee,
		metrics:     m,
		log:         log,
	}
}

func (s *Service) Provider() string { return s.api.Provider() }

func (s *Service) Wilayas(ctx context.Context) ([]Wilaya, error) {
	key := fmt.Sprintf(redisx.KeyWilayas, s.api.Provider())
	return cached(ctx, s, key, redisx.TTLLookup, func() ([]Wilaya, error) { return s.api.Wilayas(ctx) })
}

func (s *Service) Communes(ctx context.Context, wilayaID int) ([]Commune, error) {
	if err := checkWilaya(wilayaID); err != nil {
		return nil, err
	}
	key := fmt.Sprintf(redisx.KeyCommunes, s.api.Provider(), wilayaID)
	return cached(ctx, s, key, redisx.TTLLookup, func() ([]Commune, error) { return s.api.Communes(ctx, wilayaID) })
}

func (s *Service) Centers(ctx context.Context, wilayaID int) ([]Center, error) {
	if err := checkWilaya(wilayaID); err != nil {
		return nil, err
	}
	key := fmt.Sprintf(redisx.KeyCenters, s.api.Provider(), wilayaID)
	return cached(ctx, s, key, redisx.TTLLookup, func() ([]Center, error) { return s.api.Centers(ctx, wilayaID) })
}

func (s *Service) Fees(ctx context.Context, toWilaya int) (Fees, error) {
	if err := checkWilaya(toWilaya); err != nil {
		return Fees{}, err
	}
	key := fmt.Sprintf(redisx.KeyFees, s.api.Provider(), s.fromWilaya, toWilaya)
	return cached(ctx, s, key, redisx.TTLFees, func() (Fees, error) { return s.api.Fees(ctx, s.fromWilaya, toWilaya) })
}

// WilayaName resolves a wilaya id through the cached lookup.
func (s *Service) WilayaName(ctx context.Context, id int) (string, error) {
	ws, err := s.Wilayas(ctx)
	if err != nil {
		return "", err
	}
	for _, w := range ws {
		if w.ID == id {
			return w.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownWilaya, id)
}

// Quote prices delivery to a commune, named or given by id. Provider
// failures and unknown communes answer the fallback fee with Estimated set;
// only an out of range wilaya is an error.
func (s *Service) Quote(ctx context.Context, wilayaID int, commune string, stopDesk bool) (Quote, error) {
	if err := checkWilaya(wilayaID); err != nil {
		return Quote{}, err
	}
	q := Quote{WilayaID: wilayaID, Commune: strings.TrimSpace(commune), StopDesk: stopDesk}

	fees, err := s.Fees(ctx, wilayaID)
	if err == nil {
		cf, ok := findCommune(fees, q.Commune)
		if ok {
			q.Fee = cf.HomeFee
			if stopDesk {
				q.Fee = cf.DeskFee
			}
			if q.Fee.IsPositive() {
				return q, nil
			}
		}
		err = fmt.Errorf("%w: %q in wilaya %d", ErrUnknownCommune, q.Commune, wilayaID)
	}

	s.log.Warn().Err(err).Int("wilaya", wilayaID).Str("commune", q.Commune).Msg("shipping fee fallback")
	s.metrics.FeeFallback()
	q.Fee = s.fallbackFee
	q.Estimated = true
	return q, nil
}

// ShippingFee is Quote reduced to the amount charged at checkout.
func (s *Service) ShippingFee(ctx context.Context, wilayaID int, commune string, stopDesk bool) (decimal.Decimal, error) {
	q, err := s.Quote(ctx, wilayaID, commune, stopDesk)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return q.Fee, nil
}

func (s *Service) CreateParcel(ctx context.Context, p Parcel) (ParcelResult, error) {
	return breaker(s, func() (ParcelResult, error) { return s.api.CreateParcel(ctx, p) })
}

func (s *Service) Parcel(ctx context.Context, tracking string) (ParcelStatus, error) {
	return breaker(s, func() (ParcelStatus, error) { return s.api.Parcel(ctx, tracking) })
}

func findCommune(f Fees, commune string) (CommuneFee, bool) {
	if id, err := strconv.Atoi(commune); err == nil {
		cf, ok := f.PerCommune[strconv.Itoa(id)]
		return cf, ok
	}
	want := foldName(commune)
	for _, cf := range f.PerCommune {
		if foldName(cf.CommuneName) == want {
			return cf, true
		}
	}
	return CommuneFee{}, false
}

var nameFolder = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "à", "a", "â", "a",
	"ï", "i", "î", "i", "ô", "o", "ç", "c", "'", " ", "-", " ",
)

func foldName(s string) string {
	return strings.Join(strings.Fields(nameFolder.Replace(strings.ToLower(s))), " ")
}

func checkWilaya(id int) error {
	if id < MinWilaya || id > MaxWilaya {
		return fmt.Errorf("%w: %d", ErrUnknownWilaya, id)
	}
	return nil
}

func breaker[T any](s *Service, fn func() (T, error)) (T, error) {
	v, err := s.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		return zero, err
	}
	return v.(T), nil
}

// cached reads key from redis, falling through to load (behind the breaker)
// on a miss. Redis errors only cost a provider round trip.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var out T
	if s.rdb != nil {
		found, err := redisx.GetJSON(ctx, s.rdb, key, &out)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("shipping cache read")
		} else if found {
			return out, nil
		}
	}
	out, err := breaker(s, load)
	if err != nil {
		return out, err
	}
	if s.rdb != nil {
		if err := redisx.SetJSON(ctx, s.rdb, key, out, ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("shipping cache write")
		}
	}
	return out, nil
}
