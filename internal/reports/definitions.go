package reports

import (
	"encoding/json"
	"fmt"

	"foodwaste/pkg/domain"
	"foodwaste/pkg/reportapi"
)

// Parameter names shared by the report queries.
const (
	ParamCity     = "city"
	ParamFoodType = "food_type"
	ParamAsOf     = "as_of"
)

// Settings carries the configurable literals of reports 3 and 25.
type Settings struct {
	ContactCity     string
	ClaimedFoodType string
}

// DefaultSettings returns the values the dashboard ships with.
func DefaultSettings() Settings {
	return Settings{ContactCity: "East Aaron", ClaimedFoodType: "Non-Vegetarian"}
}

type definition struct {
	number      int
	key         string
	title       string
	description string
	query       Query
	params      []reportapi.Parameter
	tags        []string
	annotations map[string]string
}

func (d definition) columns() []reportapi.Column {
	cols := make([]reportapi.Column, len(d.query.Fields))
	for i, f := range d.query.Fields {
		cols[i] = reportapi.Column{Name: f.Name(), Type: f.Type, Description: f.Description}
	}
	return cols
}

const (
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
)

func str(e Expr, as string) Field { return Field{Expr: e, As: as, Type: typeString} }
func num(e Expr, as string) Field { return Field{Expr: e, As: as, Type: typeInteger} }
func dec(e Expr, as string) Field { return Field{Expr: e, As: as, Type: typeNumber} }

func desc(e Expr) Order { return Order{Expr: e, Desc: true} }
func asc(e Expr) Order  { return Order{Expr: e} }

func on(left, right string) Expr { return Eq(Col(left), Col(right)) }

func jsonLiteral(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

var asOfParameter = reportapi.Parameter{
	Name:        ParamAsOf,
	Type:        "timestamp",
	Description: "expiry threshold; defaults to the current time",
	Example:     json.RawMessage(`"2025-03-20 00:00:00"`),
}

// notClaimed matches listings that no claim of any status references.
var notClaimed = IsNull(Col("c.Food_ID"))

func definitions(settings Settings) []definition {
	return []definition{
		{
			number: 1, key: "providers_receivers_by_city",
			title:       "Providers and Receivers by City",
			description: "Distinct providers and receivers per provider city.",
			query: Query{
				Fields: []Field{
					str(Col("p.City"), ""),
					num(CountDistinct(Col("p.Provider_ID")), "Number_of_Providers"),
					num(CountDistinct(Col("r.Receiver_ID")), "Number_of_Receivers"),
				},
				From:    Source{Table: "providers", Alias: "p"},
				Joins:   []Join{{Left: true, Table: "receivers", Alias: "r", On: on("p.City", "r.City")}},
				GroupBy: []Expr{Col("p.City")},
				OrderBy: []Order{asc(Col("p.City"))},
			},
			tags: []string{"providers", "receivers"},
		},
		{
			number: 2, key: "listings_by_provider_type",
			title:       "Top Food Provider Types by Contribution",
			description: "Listing count per provider type, joined through the provider table.",
			query: Query{
				Fields: []Field{
					str(Col("p.Type"), "Provider_Type"),
					num(Count(Col("f.Food_ID")), "Number_of_Listings"),
				},
				From:    Source{Table: "providers", Alias: "p"},
				Joins:   []Join{{Table: "food_listings", Alias: "f", On: on("p.Provider_ID", "f.Provider_ID")}},
				GroupBy: []Expr{Col("p.Type")},
				OrderBy: []Order{desc(Col("Number_of_Listings"))},
			},
			tags: []string{"providers", "listings"},
		},
		{
			number: 3, key: "provider_contacts_in_city",
			title:       fmt.Sprintf("Contact Information of Providers in '%s'", settings.ContactCity),
			description: "Name and contact of every provider located in the selected city.",
			query: Query{
				Fields: []Field{str(Col("Name"), ""), str(Col("Contact"), "")},
				From:   Source{Table: "providers"},
				Where:  []Expr{Eq(Col("City"), Param(ParamCity))},
			},
			params: []reportapi.Parameter{{
				Name:        ParamCity,
				Type:        "string",
				Description: "provider city to list",
				Default:     jsonLiteral(settings.ContactCity),
			}},
			tags: []string{"providers"},
		},
		{
			number: 4, key: "top_receivers_by_claims",
			title:       "Top 10 Receivers by Number of Claims",
			description: "Receivers ranked by claim count.",
			query: Query{
				Fields: []Field{
					str(Col("r.Name"), "Receiver_Name"),
					num(Count(Col("c.Claim_ID")), "Total_Claims"),
				},
				From:    Source{Table: "receivers", Alias: "r"},
				Joins:   []Join{{Table: "claims", Alias: "c", On: on("r.Receiver_ID", "c.Receiver_ID")}},
				GroupBy: []Expr{Col("r.Name")},
				OrderBy: []Order{desc(Col("Total_Claims"))},
				Limit:   10,
			},
			tags: []string{"receivers", "claims"},
		},
		{
			number: 5, key: "total_quantity",
			title:       "Total Quantity of All Available Food",
			description: "Sum of Quantity over every listing.",
			query: Query{
				Fields: []Field{num(Sum(Col("Quantity")), "Total_Food_Quantity")},
				From:   Source{Table: "food_listings"},
			},
			tags: []string{"listings"},
		},
		{
			number: 6, key: "top_cities_by_listings",
			title:       "Top 5 Cities with the Most Food Listings",
			description: "Listing count per location.",
			query: Query{
				Fields: []Field{
					str(Col("Location"), "City"),
					num(Count(Col("Food_ID")), "Number_of_Listings"),
				},
				From:    Source{Table: "food_listings"},
				GroupBy: []Expr{Col("Location")},
				OrderBy: []Order{desc(Col("Number_of_Listings"))},
				Limit:   5,
			},
			tags: []string{"listings"},
		},
		{
			number: 7, key: "top_food_names",
			title:       "Top 10 Most Common Food Types",
			description: "Listing count per food name.",
			query: Query{
				Fields: []Field{
					str(Col("Food_Name"), ""),
					num(Count(Col("Food_ID")), "Number_of_Listings"),
				},
				From:    Source{Table: "food_listings"},
				GroupBy: []Expr{Col("Food_Name")},
				OrderBy: []Order{desc(Col("Number_of_Listings"))},
				Limit:   10,
			},
			tags: []string{"listings"},
		},
		{
			number: 8, key: "top_food_items_by_claims",
			title:       "Top 10 Food Items by Claims",
			description: "Claim count per referenced Food_ID.",
			query: Query{
				Fields: []Field{
					num(Col("Food_ID"), ""),
					num(Count(Col("Claim_ID")), "Number_of_Claims"),
				},
				From:    Source{Table: "claims"},
				GroupBy: []Expr{Col("Food_ID")},
				OrderBy: []Order{desc(Col("Number_of_Claims"))},
				Limit:   10,
			},
			tags: []string{"claims"},
		},
		{
			number: 9, key: "top_providers_by_completed_claims",
			title:       "Top 10 Providers by Successful Claims",
			description: "Completed claims per provider name.",
			query: Query{
				Fields: []Field{
					str(Col("p.Name"), "Provider_Name"),
					num(Count(Col("c.Claim_ID")), "Successful_Claims"),
				},
				From: Source{Table: "claims", Alias: "c"},
				Joins: []Join{
					{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")},
					{Table: "providers", Alias: "p", On: on("fl.Provider_ID", "p.Provider_ID")},
				},
				Where:   []Expr{Eq(Col("c.Status"), Value(domain.ClaimCompleted))},
				GroupBy: []Expr{Col("p.Name")},
				OrderBy: []Order{desc(Col("Successful_Claims"))},
				Limit:   10,
			},
			tags: []string{"providers", "claims"},
		},
		{
			number: 10, key: "claim_status_share",
			title:       "Percentage of Claims by Status",
			description: "Claim count per status and its share of all claims.",
			query: Query{
				Fields: []Field{
					str(Col("Status"), ""),
					num(Count(Col("Claim_ID")), "Total_Claims"),
					dec(Percent(Count(Col("Claim_ID")), Query{
						Fields: []Field{num(Count(Col("Claim_ID")), "")},
						From:   Source{Table: "claims"},
					}), "Percentage"),
				},
				From:    Source{Table: "claims"},
				GroupBy: []Expr{Col("Status")},
			},
			tags: []string{"claims"},
		},
		{
			number: 11, key: "average_claimed_quantity_per_receiver",
			title:       "Average Food Quantity Claimed per Receiver",
			description: "Mean over receivers of the summed quantity of the listings they claimed.",
			query: Query{
				Fields: []Field{dec(Avg(Col("Total_Quantity")), "Average_Quantity_per_Receiver")},
				From: Source{
					Alias: "receiver_totals",
					Sub: &Query{
						Fields: []Field{
							num(Col("c.Receiver_ID"), ""),
							num(Sum(Col("fl.Quantity")), "Total_Quantity"),
						},
						From:    Source{Table: "claims", Alias: "c"},
						Joins:   []Join{{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")}},
						GroupBy: []Expr{Col("c.Receiver_ID")},
					},
				},
			},
			tags: []string{"receivers", "claims"},
		},
		{
			number: 12, key: "claims_by_meal_type",
			title:       "Most Claimed Meal Type",
			description: "Claim count per meal type of the claimed listing.",
			query: Query{
				Fields: []Field{
					str(Col("fl.Meal_Type"), ""),
					num(Count(Col("c.Claim_ID")), "Number_of_Claims"),
				},
				From:    Source{Table: "claims", Alias: "c"},
				Joins:   []Join{{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")}},
				GroupBy: []Expr{Col("fl.Meal_Type")},
				OrderBy: []Order{desc(Col("Number_of_Claims"))},
			},
			tags: []string{"claims", "listings"},
		},
		{
			number: 13, key: "top_providers_by_quantity",
			title:       "Top 10 Providers by Total Donated Quantity",
			description: "Summed listing quantity per provider name.",
			query: Query{
				Fields: []Field{
					str(Col("p.Name"), "Provider_Name"),
					num(Sum(Col("fl.Quantity")), "Total_Donated_Quantity"),
				},
				From:    Source{Table: "providers", Alias: "p"},
				Joins:   []Join{{Table: "food_listings", Alias: "fl", On: on("p.Provider_ID", "fl.Provider_ID")}},
				GroupBy: []Expr{Col("p.Name")},
				OrderBy: []Order{desc(Col("Total_Donated_Quantity"))},
				Limit:   10,
			},
			tags: []string{"providers", "listings"},
		},
		{
			number: 14, key: "expired_unclaimed_listings",
			title:       "Unclaimed Expired Food Items",
			description: "Listings past their expiry date that no claim references.",
			query: Query{
				Fields: []Field{
					num(Col("fl.Food_ID"), ""),
					str(Col("fl.Food_Name"), ""),
					str(Col("fl.Expiry_Date"), ""),
					str(Col("fl.Location"), ""),
				},
				From:    Source{Table: "food_listings", Alias: "fl"},
				Joins:   []Join{{Left: true, Table: "claims", Alias: "c", On: on("fl.Food_ID", "c.Food_ID")}},
				Where:   []Expr{Lt(Col("fl.Expiry_Date"), Param(ParamAsOf)), notClaimed},
				OrderBy: []Order{asc(Col("fl.Food_ID"))},
			},
			params:      []reportapi.Parameter{asOfParameter},
			tags:        []string{"listings", "claims", "expiry"},
			annotations: map[string]string{"unclaimed": "no claim of any status references the listing"},
		},
		{
			number: 15, key: "top_cities_by_pending_claims",
			title:       "Top 5 Cities with Pending Claims",
			description: "Pending claims per listing location.",
			query: Query{
				Fields: []Field{
					str(Col("fl.Location"), "City"),
					num(Count(Col("c.Claim_ID")), "Pending_Claims_Count"),
				},
				From:    Source{Table: "claims", Alias: "c"},
				Joins:   []Join{{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")}},
				Where:   []Expr{Eq(Col("c.Status"), Value(domain.ClaimPending))},
				GroupBy: []Expr{Col("fl.Location")},
				OrderBy: []Order{desc(Col("Pending_Claims_Count"))},
				Limit:   5,
			},
			tags: []string{"claims"},
		},
		{
			number: 16, key: "monthly_claims",
			title:       "Monthly Claim Trends",
			description: "Claim count per YYYY-MM of the claim timestamp.",
			query: Query{
				Fields: []Field{
					str(MonthOf(Col("c.Timestamp")), "Claim_Month"),
					num(Count(Col("c.Claim_ID")), "Total_Claims"),
				},
				From:    Source{Table: "claims", Alias: "c"},
				GroupBy: []Expr{MonthOf(Col("c.Timestamp"))},
				OrderBy: []Order{asc(Col("Claim_Month"))},
			},
			tags: []string{"claims"},
		},
		{
			number: 17, key: "quantity_by_provider_type",
			title:       "Total Quantity Donated by Provider Type",
			description: "Summed quantity per provider type recorded on the listing.",
			query: Query{
				Fields: []Field{
					str(Col("Provider_Type"), ""),
					num(Sum(Col("Quantity")), "Total_Donated_Quantity"),
				},
				From:    Source{Table: "food_listings"},
				GroupBy: []Expr{Col("Provider_Type")},
				OrderBy: []Order{desc(Col("Total_Donated_Quantity"))},
			},
			tags: []string{"listings"},
		},
		{
			number: 18, key: "average_quantity_by_food_type",
			title:       "Average Quantity per Food Type Listing",
			description: "Mean listing quantity per food type.",
			query: Query{
				Fields: []Field{
					str(Col("Food_Type"), ""),
					dec(Avg(Col("Quantity")), "Average_Quantity"),
				},
				From:    Source{Table: "food_listings"},
				GroupBy: []Expr{Col("Food_Type")},
			},
			tags: []string{"listings"},
		},
		{
			number: 19, key: "providers_without_claims",
			title:       "Providers with No Claims",
			description: "Providers having a listing, or no listing at all, that no claim references; alphabetical.",
			query: Query{
				Fields: []Field{str(Col("p.Name"), ""), str(Col("p.City"), "")},
				From:   Source{Table: "providers", Alias: "p"},
				Joins: []Join{
					{Left: true, Table: "food_listings", Alias: "fl", On: on("p.Provider_ID", "fl.Provider_ID")},
					{Left: true, Table: "claims", Alias: "c", On: on("fl.Food_ID", "c.Food_ID")},
				},
				Where:   []Expr{IsNull(Col("c.Claim_ID"))},
				GroupBy: []Expr{Col("p.Name"), Col("p.City")},
				OrderBy: []Order{asc(Col("p.Name"))},
				Limit:   10,
			},
			tags: []string{"providers", "claims"},
		},
		{
			number: 20, key: "most_claimed_food_by_city",
			title:       "Most Claimed Food Item by City",
			description: "The food name with the most claims in each listing location.",
			query: Query{
				Fields: []Field{
					str(Col("fl.Location"), ""),
					str(Col("fl.Food_Name"), ""),
					num(Count(Col("c.Claim_ID")), "Total_Claims"),
				},
				From:    Source{Table: "claims", Alias: "c"},
				Joins:   []Join{{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")}},
				GroupBy: []Expr{Col("fl.Location"), Col("fl.Food_Name")},
				Rank: &Rank{
					PartitionBy: []Expr{Col("fl.Location")},
					OrderBy:     []Order{desc(Count(Col("c.Claim_ID")))},
				},
			},
			tags: []string{"claims", "listings"},
			annotations: map[string]string{
				"tie_break": "unspecified: food names tied on Total_Claims within a city are picked in engine order",
			},
		},
		{
			number: 21, key: "claimed_quantity_by_receiver_type",
			title:       "Total Quantity Claimed by Receiver Type",
			description: "Summed quantity of claimed listings per receiver type.",
			query: Query{
				Fields: []Field{
					str(Col("r.Type"), "Receiver_Type"),
					num(Sum(Col("fl.Quantity")), "Total_Claimed_Quantity"),
				},
				From: Source{Table: "claims", Alias: "c"},
				Joins: []Join{
					{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")},
					{Table: "receivers", Alias: "r", On: on("c.Receiver_ID", "r.Receiver_ID")},
				},
				GroupBy: []Expr{Col("r.Type")},
				OrderBy: []Order{desc(Col("Total_Claimed_Quantity"))},
			},
			tags: []string{"receivers", "claims"},
		},
		{
			number: 22, key: "listings_by_meal_type",
			title:       "Most Listed Meal Type",
			description: "Listing count per meal type.",
			query: Query{
				Fields: []Field{
					str(Col("Meal_Type"), ""),
					num(Count(Col("Food_ID")), "Number_of_Listings"),
				},
				From:    Source{Table: "food_listings"},
				GroupBy: []Expr{Col("Meal_Type")},
				OrderBy: []Order{desc(Col("Number_of_Listings"))},
			},
			tags: []string{"listings"},
		},
		{
			number: 23, key: "providers_by_type",
			title:       "Provider Count by Provider Type",
			description: "Provider count per provider type.",
			query: Query{
				Fields: []Field{
					str(Col("Type"), "Provider_Type"),
					num(Count(Col("Provider_ID")), "Number_of_Providers"),
				},
				From:    Source{Table: "providers"},
				GroupBy: []Expr{Col("Type")},
				OrderBy: []Order{desc(Col("Number_of_Providers"))},
			},
			tags: []string{"providers"},
		},
		{
			number: 24, key: "top_providers_by_expired_unclaimed_quantity",
			title:       "Top 10 Providers with Expired Unclaimed Food",
			description: "Summed quantity of expired, unclaimed listings per provider name.",
			query: Query{
				Fields: []Field{
					str(Col("p.Name"), "Provider_Name"),
					num(Sum(Col("fl.Quantity")), "Total_Expired_Unclaimed_Quantity"),
				},
				From: Source{Table: "food_listings", Alias: "fl"},
				Joins: []Join{
					{Table: "providers", Alias: "p", On: on("fl.Provider_ID", "p.Provider_ID")},
					{Left: true, Table: "claims", Alias: "c", On: on("fl.Food_ID", "c.Food_ID")},
				},
				Where:   []Expr{Lt(Col("fl.Expiry_Date"), Param(ParamAsOf)), notClaimed},
				GroupBy: []Expr{Col("p.Name")},
				OrderBy: []Order{desc(Col("Total_Expired_Unclaimed_Quantity"))},
				Limit:   10,
			},
			params:      []reportapi.Parameter{asOfParameter},
			tags:        []string{"providers", "listings", "expiry"},
			annotations: map[string]string{"unclaimed": "no claim of any status references the listing"},
		},
		{
			number: 25, key: "receivers_of_food_type",
			title:       fmt.Sprintf("Receivers Who Claimed '%s' Food", settings.ClaimedFoodType),
			description: "Distinct receivers with at least one claim on a listing of the selected food type.",
			query: Query{
				Distinct: true,
				Fields:   []Field{str(Col("r.Name"), "Receiver_Name"), str(Col("r.Contact"), "")},
				From:     Source{Table: "receivers", Alias: "r"},
				Joins: []Join{
					{Table: "claims", Alias: "c", On: on("r.Receiver_ID", "c.Receiver_ID")},
					{Table: "food_listings", Alias: "fl", On: on("c.Food_ID", "fl.Food_ID")},
				},
				Where: []Expr{Eq(Col("fl.Food_Type"), Param(ParamFoodType))},
			},
			params: []reportapi.Parameter{{
				Name:        ParamFoodType,
				Type:        "string",
				Description: "food type of the claimed listings",
				Enum:        append([]string(nil), domain.FoodTypes...),
				Default:     jsonLiteral(settings.ClaimedFoodType),
			}},
			tags: []string{"receivers", "claims"},
		},
	}
}
