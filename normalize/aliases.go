package normalize

import "github.com/monza-lab/monza-Cars-marketplace-sub001/model"

// fieldAliases is the declarative per-source field-mapping table. Each entry
// is an ordered list of acceptable upstream field names for one canonical
// field; the first non-empty value wins. New sources add a table here, not
// new control flow.
type fieldAliases struct {
	Title        []string
	URL          []string
	Make         []string
	Model        []string
	Year         []string
	ID           []string
	Status       []string
	CurrentBid   []string
	HammerPrice  []string
	FinalPrice   []string
	BidCount     []string
	Currency     []string
	Mileage      []string
	MileageUnit  []string
	VIN          []string
	Trim         []string
	Images       []string
	City         []string
	State        []string
	Country      []string
	AuctionHouse []string
	Description  []string
	SaleDate     []string
	ScrapedAt    []string
}

// defaultAliases covers the field names shared by most upstream shapes.
var defaultAliases = fieldAliases{
	Title:        []string{"title", "name", "listing_title", "auction_title"},
	URL:          []string{"source_url", "url", "link", "listing_url", "permalink"},
	Make:         []string{"make", "brand", "manufacturer", "marque"},
	Model:        []string{"model", "model_name", "car_model"},
	Year:         []string{"year", "model_year", "build_year"},
	ID:           []string{"id", "source_id", "listing_id", "auction_id", "lot_id"},
	Status:       []string{"status", "auctionStatus", "auction_status", "sale_status", "state"},
	CurrentBid:   []string{"currentBid", "current_bid", "high_bid", "bid"},
	HammerPrice:  []string{"hammer_price", "hammerPrice", "winning_bid"},
	FinalPrice:   []string{"final_price", "sold_price", "price", "sale_price", "amount"},
	BidCount:     []string{"bid_count", "bids", "num_bids", "bidCount"},
	Currency:     []string{"currency", "currency_code"},
	Mileage:      []string{"mileage", "odometer", "miles", "kms"},
	MileageUnit:  []string{"mileage_unit", "odometer_unit", "distance_unit"},
	VIN:          []string{"vin", "chassis", "chassis_no", "chassis_number"},
	Trim:         []string{"trim", "trim_level", "variant", "edition"},
	Images:       []string{"images", "image_urls", "photos", "pictures", "gallery"},
	City:         []string{"location_city", "city", "town"},
	State:        []string{"location_state", "state_code", "region", "province"},
	Country:      []string{"location_country", "country", "country_code"},
	AuctionHouse: []string{"auction_house", "seller", "house", "platform_label"},
	Description:  []string{"description", "summary", "details", "body"},
	SaleDate:     []string{"sale_date", "sold_at", "end_date", "auction_end", "ended_at", "closed_at"},
	ScrapedAt:    []string{"scraped_at", "scrapedAt", "fetched_at", "crawled_at"},
}

// sourceOverrides lists field names peculiar to one marketplace, tried ahead
// of the defaults.
var sourceOverrides = map[model.Source]fieldAliases{
	model.SourceBaT: {
		ID:         []string{"id", "bat_id", "lot_number"},
		Status:     []string{"auctionStatus", "status"},
		CurrentBid: []string{"currentBid", "current_bid_amount"},
		SaleDate:   []string{"sold_date", "auction_end_date"},
	},
	model.SourceCarsAndBids: {
		ID:       []string{"auction_id", "id"},
		Status:   []string{"auction_status", "status"},
		SaleDate: []string{"ended_at", "end_time"},
	},
	model.SourcePCarMarket: {
		ID:           []string{"lot_id", "id"},
		FinalPrice:   []string{"winning_bid", "final_price"},
		AuctionHouse: []string{"auction_type", "auction_house"},
	},
	model.SourceCollectingCars: {
		ID:       []string{"listing_id", "reference", "id"},
		Currency: []string{"currency_iso", "currency"},
		Country:  []string{"country_iso", "country"},
	},
}

// aliasesFor merges a source's overrides ahead of the defaults.
func aliasesFor(source model.Source) fieldAliases {
	o := sourceOverrides[source]
	merge := func(over, def []string) []string {
		if len(over) == 0 {
			return def
		}
		out := make([]string, 0, len(over)+len(def))
		seen := make(map[string]struct{}, len(over)+len(def))
		for _, name := range append(append([]string{}, over...), def...) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
		return out
	}
	return fieldAliases{
		Title:        merge(o.Title, defaultAliases.Title),
		URL:          merge(o.URL, defaultAliases.URL),
		Make:         merge(o.Make, defaultAliases.Make),
		Model:        merge(o.Model, defaultAliases.Model),
		Year:         merge(o.Year, defaultAliases.Year),
		ID:           merge(o.ID, defaultAliases.ID),
		Status:       merge(o.Status, defaultAliases.Status),
		CurrentBid:   merge(o.CurrentBid, defaultAliases.CurrentBid),
		HammerPrice:  merge(o.HammerPrice, defaultAliases.HammerPrice),
		FinalPrice:   merge(o.FinalPrice, defaultAliases.FinalPrice),
		BidCount:     merge(o.BidCount, defaultAliases.BidCount),
		Currency:     merge(o.Currency, defaultAliases.Currency),
		Mileage:      merge(o.Mileage, defaultAliases.Mileage),
		MileageUnit:  merge(o.MileageUnit, defaultAliases.MileageUnit),
		VIN:          merge(o.VIN, defaultAliases.VIN),
		Trim:         merge(o.Trim, defaultAliases.Trim),
		Images:       merge(o.Images, defaultAliases.Images),
		City:         merge(o.City, defaultAliases.City),
		State:        merge(o.State, defaultAliases.State),
		Country:      merge(o.Country, defaultAliases.Country),
		AuctionHouse: merge(o.AuctionHouse, defaultAliases.AuctionHouse),
		Description:  merge(o.Description, defaultAliases.Description),
		SaleDate:     merge(o.SaleDate, defaultAliases.SaleDate),
		ScrapedAt:    merge(o.ScrapedAt, defaultAliases.ScrapedAt),
	}
}
