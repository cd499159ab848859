package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"foodwaste/internal/core"
	"foodwaste/internal/infra/persistence/sqlite"
	"foodwaste/internal/observability"
	"foodwaste/internal/reports"
	"foodwaste/internal/web"
	"foodwaste/pkg/domain"
	"foodwaste/pkg/reportapi"
)

var fixedNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func mustTime(raw string) *time.Time {
	ts, err := domain.ParseTimestamp(raw)
	Expect(err).NotTo(HaveOccurred())
	return ts
}

func seedDataset() domain.Dataset {
	return domain.Dataset{
		Providers: []domain.Provider{
			{ID: 1, Name: "Acme Foods", Type: "Restaurant", City: "Springfield", Contact: "111"},
			{ID: 2, Name: "Bay Grocer", Type: "Grocery Store", City: "East Aaron", Contact: "222"},
		},
		Receivers: []domain.Receiver{{ID: 1, Name: "Shelter One", Type: "Shelter", City: "Springfield", Contact: "r1"}},
		Listings: []domain.FoodListing{
			{ID: 1, FoodName: "Bread", Quantity: 10, ExpiryDate: mustTime("2025-03-01 00:00:00"), ProviderID: 1, ProviderType: "Restaurant", Location: "Springfield", FoodType: "Vegetarian", MealType: "Lunch"},
			{ID: 2, FoodName: "Soup", Quantity: 32, ExpiryDate: mustTime("2025-03-30 00:00:00"), ProviderID: 2, ProviderType: "Grocery Store", Location: "East Aaron", FoodType: "Vegan", MealType: "Dinner"},
		},
		Claims: []domain.Claim{{ID: 1, FoodID: 2, ReceiverID: 1, Status: domain.ClaimPending, Timestamp: mustTime("2025-03-05 08:30:00")}},
	}
}

var _ = Describe("Dashboard", func() {
	var (
		seed   domain.Dataset
		store  domain.PersistentStore
		router *echo.Echo
	)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	post := func(target string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	parse := func(rec *httptest.ResponseRecorder) *goquery.Document {
		doc, err := goquery.NewDocumentFromReader(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		return doc
	}

	listingRow := func(doc *goquery.Document, id string) *goquery.Selection {
		return doc.Find(`#listings tbody tr[data-food-id="` + id + `"]`)
	}

	BeforeEach(func() {
		seed = seedDataset()
	})

	JustBeforeEach(func() {
		opened, err := sqlite.NewMemoryStore()
		if err != nil {
			store = nil
			Skip("sqlite unavailable: " + err.Error())
		}
		store = opened
		Expect(store.ReplaceAll(context.Background(), seed)).To(Succeed())

		metrics := observability.NewMetrics("")
		svc := core.NewService(store, core.WithMetricsRecorder(metrics))
		catalog, err := reports.NewCatalog(reportapi.Environment{Store: store, Now: func() time.Time { return fixedNow }}, reports.DefaultSettings())
		Expect(err).NotTo(HaveOccurred())

		dashboard, err := web.New(svc, catalog, nil, web.WithMetricsHandler(metrics.Handler()))
		Expect(err).NotTo(HaveOccurred())
		router = echo.New()
		dashboard.Register(router)
	})

	AfterEach(func() {
		if store != nil {
			_ = store.Close()
		}
	})

	Describe("GET /", func() {
		It("renders the listing table, city filter and every report panel", func() {
			rec := get("/")
			Expect(rec.Code).To(Equal(http.StatusOK))
			doc := parse(rec)

			var cities []string
			doc.Find("#city option").Each(func(_ int, s *goquery.Selection) {
				cities = append(cities, s.Text())
			})
			Expect(cities).To(Equal([]string{"All", "East Aaron", "Springfield"}))
			Expect(doc.Find("#city option[selected]").Text()).To(Equal("All"))

			Expect(doc.Find("#listings tbody tr").Length()).To(Equal(2))
			Expect(doc.Find("#listings thead th").First().Text()).To(Equal("Food_ID"))
			Expect(listingRow(doc, "1").Find("td").Eq(3).Text()).To(Equal("2025-03-01 00:00:00"))

			Expect(doc.Find("section.panel").Length()).To(Equal(25))
			Expect(doc.Find("section.panel h3").First().Text()).To(HavePrefix("1. "))
			Expect(doc.Find("#report-total_quantity tbody td").Text()).To(Equal("42"))
			Expect(doc.Find("#report-expired_unclaimed_listings tbody tr").Length()).To(Equal(1))
			Expect(doc.Find(".panel-error").Length()).To(BeZero())
			Expect(doc.Find("#message").Length()).To(BeZero())
		})

		It("filters listings by exact city", func() {
			doc := parse(get("/?city=Springfield"))
			Expect(doc.Find("#listings tbody tr").Length()).To(Equal(1))
			Expect(listingRow(doc, "1").Length()).To(Equal(1))
			Expect(doc.Find("#city option[selected]").Text()).To(Equal("Springfield"))
			Expect(doc.Find(`#add-listing input[name="city"]`).AttrOr("value", "")).To(Equal("=Springfield"))
			By("leaving the reports unfiltered")
			Expect(doc.Find("#report-total_quantity tbody td").Text()).To(Equal("42"))
		})

		Context("with listings whose Location is empty or literally All", func() {
			BeforeEach(func() {
				seed.Listings = append(seed.Listings,
					domain.FoodListing{ID: 3, FoodName: "Rice", Quantity: 4, ProviderID: 1, ProviderType: "Restaurant", FoodType: "Vegan", MealType: "Lunch"},
					domain.FoodListing{ID: 4, FoodName: "Tea", Quantity: 1, ProviderID: 2, ProviderType: "Grocery Store", Location: "All", FoodType: "Vegan", MealType: "Snacks"},
				)
			})

			It("offers each Location as an exact filter next to the unfiltered option", func() {
				doc := parse(get("/"))
				var values []string
				doc.Find("#city option").Each(func(_ int, s *goquery.Selection) {
					values = append(values, s.AttrOr("value", "?"))
				})
				Expect(values).To(Equal([]string{"", "=", "=All", "=East Aaron", "=Springfield"}))
				Expect(doc.Find("#listings tbody tr").Length()).To(Equal(4))
			})

			It("filters on the empty Location", func() {
				doc := parse(get("/?city=%3D"))
				Expect(doc.Find("#listings tbody tr").Length()).To(Equal(1))
				Expect(listingRow(doc, "3").Length()).To(Equal(1))
				Expect(doc.Find("#city option[selected]").AttrOr("value", "?")).To(Equal("="))
				Expect(doc.Find(`#update-listing input[name="city"]`).AttrOr("value", "?")).To(Equal("="))
			})

			It("filters on a Location named All", func() {
				doc := parse(get("/?city=%3DAll"))
				Expect(doc.Find("#listings tbody tr").Length()).To(Equal(1))
				Expect(listingRow(doc, "4").Length()).To(Equal(1))
			})

			It("keeps the empty-Location filter across a mutation", func() {
				rec := post("/listings/update", url.Values{"food_id": {"3"}, "quantity": {"6"}, "city": {"="}})
				Expect(rec.Code).To(Equal(http.StatusOK))
				doc := parse(rec)
				Expect(doc.Find("#listings tbody tr").Length()).To(Equal(1))
				Expect(listingRow(doc, "3").Find("td").Eq(2).Text()).To(Equal("6"))
			})
		})

		It("answers 500 when the store fails", func() {
			Expect(store.Close()).To(Succeed())
			Expect(get("/").Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("POST /listings", func() {
		form := func(overrides map[string]string) url.Values {
			values := url.Values{
				"food_name":     {"Apples"},
				"quantity":      {"5"},
				"expiry_date":   {"2025-04-01"},
				"provider_id":   {"9"},
				"provider_type": {"Supermarket"},
				"location":      {"Springfield"},
				"food_type":     {"Vegan"},
				"meal_type":     {"Snacks"},
			}
			for k, v := range overrides {
				values.Set(k, v)
			}
			return values
		}

		It("adds the listing and confirms by name", func() {
			rec := post("/listings", form(nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			doc := parse(rec)
			Expect(doc.Find("#message").Text()).To(Equal("Added Apples successfully!"))
			Expect(doc.Find("#message").HasClass("success")).To(BeTrue())

			row := listingRow(doc, "3")
			Expect(row.Length()).To(Equal(1))
			cells := row.Find("td").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
			Expect(cells).To(Equal([]string{"3", "Apples", "5", "2025-04-01 00:00:00", "9", "Supermarket", "Springfield", "Vegan", "Snacks"}))
			Expect(doc.Find("#report-total_quantity tbody td").Text()).To(Equal("47"))
		})

		It("stores a NULL expiry when the date is omitted", func() {
			doc := parse(post("/listings", form(map[string]string{"expiry_date": ""})))
			Expect(listingRow(doc, "3").Find("td").Eq(3).Text()).To(BeEmpty())
		})

		DescribeTable("rejects invalid input with 400 and leaves the table untouched",
			func(field, value string) {
				rec := post("/listings", form(map[string]string{field: value}))
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				doc := parse(rec)
				Expect(doc.Find("#message").HasClass("error")).To(BeTrue())
				Expect(doc.Find("#listings tbody tr").Length()).To(Equal(2))
			},
			Entry("non-numeric quantity", "quantity", "lots"),
			Entry("zero quantity", "quantity", "0"),
			Entry("zero provider id", "provider_id", "0"),
			Entry("unknown provider type", "provider_type", "Farm"),
			Entry("unknown food type", "food_type", "Fruit"),
			Entry("unknown meal type", "meal_type", "Brunch"),
			Entry("malformed expiry", "expiry_date", "next week"),
		)
	})

	Describe("POST /listings/update", func() {
		It("overwrites only the quantity", func() {
			rec := post("/listings/update", url.Values{"food_id": {"1"}, "quantity": {"25"}, "city": {""}})
			Expect(rec.Code).To(Equal(http.StatusOK))
			doc := parse(rec)
			Expect(doc.Find("#message").Text()).To(Equal("Listing with Food ID 1 updated successfully!"))
			cells := listingRow(doc, "1").Find("td").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
			Expect(cells).To(Equal([]string{"1", "Bread", "25", "2025-03-01 00:00:00", "1", "Restaurant", "Springfield", "Vegetarian", "Lunch"}))
		})

		It("rejects a quantity below one", func() {
			rec := post("/listings/update", url.Values{"food_id": {"1"}, "quantity": {"0"}})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports a Food ID that no longer exists", func() {
			rec := post("/listings/update", url.Values{"food_id": {"99"}, "quantity": {"3"}})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(parse(rec).Find("#message").HasClass("error")).To(BeTrue())
		})
	})

	Describe("POST /listings/delete", func() {
		It("removes the row", func() {
			rec := post("/listings/delete", url.Values{"food_id": {"2"}})
			Expect(rec.Code).To(Equal(http.StatusOK))
			doc := parse(rec)
			Expect(doc.Find("#message").Text()).To(Equal("Listing with Food ID 2 deleted successfully!"))
			Expect(listingRow(doc, "2").Length()).To(BeZero())
			Expect(doc.Find(`#delete-listing select[name="food_id"] option`).Length()).To(Equal(1))
		})
	})

	Context("with no listings", func() {
		BeforeEach(func() {
			seed = domain.Dataset{}
		})

		It("offers no update or delete form", func() {
			doc := parse(get("/"))
			Expect(doc.Find("#update-listing .info").Text()).To(Equal("No listings available to update."))
			Expect(doc.Find("#delete-listing .info").Text()).To(Equal("No listings available to delete."))
			Expect(doc.Find("#update-listing select").Length()).To(BeZero())
		})

		It("reports update and delete as unavailable without attempting them", func() {
			rec := post("/listings/update", url.Values{"food_id": {"1"}, "quantity": {"2"}})
			Expect(rec.Code).To(Equal(http.StatusOK))
			doc := parse(rec)
			Expect(doc.Find("#message").Text()).To(Equal("No listings available to update."))
			Expect(doc.Find("#message").HasClass("info")).To(BeTrue())

			doc = parse(post("/listings/delete", url.Values{"food_id": {"1"}}))
			Expect(doc.Find("#message").Text()).To(Equal("No listings available to delete."))
		})
	})

	Describe("operational endpoints", func() {
		It("serves health and metrics", func() {
			Expect(get("/healthz").Code).To(Equal(http.StatusOK))
			get("/")
			rec := get("/metrics")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`foodwaste_operations_total{operation="browse",status="success"} 1`))
		})
	})
})
