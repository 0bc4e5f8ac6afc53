package sales

import (
	"context"
	"sort"
	"time"
)

const topListSize = 10

// DateRange bounds analytics to sales whose timestamp falls in [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ProductStat aggregates one product across the filtered sales.
type ProductStat struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}

// CustomerStat aggregates one customer across the filtered sales.
type CustomerStat struct {
	CustomerID   string  `json:"customerId"`
	CustomerName string  `json:"customerName"`
	Orders       int     `json:"orders"`
	Revenue      float64 `json:"revenue"`
}

// SubCategoryStat is the inner level of category performance.
type SubCategoryStat struct {
	SubCategoryID   string  `json:"subCategoryId"`
	SubCategoryName string  `json:"subCategoryName"`
	Quantity        float64 `json:"quantity"`
	Revenue         float64 `json:"revenue"`
}

// SuperCategoryStat is the outer level of category performance, with its
// sub categories nested under it.
type SuperCategoryStat struct {
	SuperCategoryID   string            `json:"superCategoryId"`
	SuperCategoryName string            `json:"superCategoryName"`
	Quantity          float64           `json:"quantity"`
	Revenue           float64           `json:"revenue"`
	SubCategories     []SubCategoryStat `json:"subCategories"`
}

// PeriodStat is one rollup bucket (a calendar day or a month).
type PeriodStat struct {
	Period  string  `json:"period"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// Analytics is the aggregate view over the (optionally filtered) history.
type Analytics struct {
	TotalSales        int                 `json:"totalSales"`
	TotalRevenue      float64             `json:"totalRevenue"`
	AverageOrderValue float64             `json:"averageOrderValue"`
	TopProducts       []ProductStat       `json:"topProducts"`
	TopCustomers      []CustomerStat      `json:"topCustomers"`
	Categories        []SuperCategoryStat `json:"categoryPerformance"`
	Daily             []PeriodStat        `json:"dailySales"`
	Monthly           []PeriodStat        `json:"monthlySales"`
}

// Analytics streams over the sale history and computes totals, top products
// and customers, two-level category performance and daily/monthly rollups.
func (s *Service) Analytics(ctx context.Context, r *DateRange) Analytics {
	sales := s.List(ctx)
	if r != nil {
		start := r.Start.UnixMilli()
		end := r.End.UnixMilli()
		filtered := sales[:0:0]
		for _, sale := range sales {
			if sale.Timestamp >= start && sale.Timestamp <= end {
				filtered = append(filtered, sale)
			}
		}
		sales = filtered
	}

	out := Analytics{TotalSales: len(sales)}
	products := map[string]*ProductStat{}
	custs := map[string]*CustomerStat{}
	supers := map[string]*SuperCategoryStat{}
	subsBySuper := map[string]map[string]*SubCategoryStat{}
	daily := map[string]*PeriodStat{}
	monthly := map[string]*PeriodStat{}

	for _, sale := range sales {
		out.TotalRevenue += sale.Total

		// Cash sales carry no customer reference and are excluded from the
		// customer ranking.
		if !sale.IsCashSale && sale.CustomerID != "" {
			stat, ok := custs[sale.CustomerID]
			if !ok {
				stat = &CustomerStat{CustomerID: sale.CustomerID, CustomerName: sale.CustomerName}
				custs[sale.CustomerID] = stat
			}
			stat.Orders++
			stat.Revenue += sale.Total
		}

		for _, item := range sale.Items {
			pStat, ok := products[item.ProductID]
			if !ok {
				pStat = &ProductStat{ProductID: item.ProductID, ProductName: item.ProductName}
				products[item.ProductID] = pStat
			}
			pStat.Quantity += item.Quantity
			pStat.Revenue += item.LineTotal

			superStat, ok := supers[item.SuperCategoryID]
			if !ok {
				superStat = &SuperCategoryStat{
					SuperCategoryID:   item.SuperCategoryID,
					SuperCategoryName: item.SuperCategoryName,
				}
				supers[item.SuperCategoryID] = superStat
				subsBySuper[item.SuperCategoryID] = map[string]*SubCategoryStat{}
			}
			superStat.Quantity += item.Quantity
			superStat.Revenue += item.LineTotal

			subStat, ok := subsBySuper[item.SuperCategoryID][item.SubCategoryID]
			if !ok {
				subStat = &SubCategoryStat{
					SubCategoryID:   item.SubCategoryID,
					SubCategoryName: item.SubCategoryName,
				}
				subsBySuper[item.SuperCategoryID][item.SubCategoryID] = subStat
			}
			subStat.Quantity += item.Quantity
			subStat.Revenue += item.LineTotal
		}

		day := time.UnixMilli(sale.Timestamp).UTC().Format("2006-01-02")
		month := time.UnixMilli(sale.Timestamp).UTC().Format("2006-01")
		bump(daily, day, sale.Total)
		bump(monthly, month, sale.Total)
	}

	if out.TotalSales > 0 {
		out.AverageOrderValue = out.TotalRevenue / float64(out.TotalSales)
	}

	for _, stat := range products {
		out.TopProducts = append(out.TopProducts, *stat)
	}
	sortByRevenueProducts(out.TopProducts)
	out.TopProducts = truncateProducts(out.TopProducts)

	for _, stat := range custs {
		out.TopCustomers = append(out.TopCustomers, *stat)
	}
	sort.SliceStable(out.TopCustomers, func(i, j int) bool {
		return out.TopCustomers[i].Revenue > out.TopCustomers[j].Revenue
	})
	if len(out.TopCustomers) > topListSize {
		out.TopCustomers = out.TopCustomers[:topListSize]
	}

	for superID, superStat := range supers {
		stat := *superStat
		for _, subStat := range subsBySuper[superID] {
			stat.SubCategories = append(stat.SubCategories, *subStat)
		}
		sort.SliceStable(stat.SubCategories, func(i, j int) bool {
			return stat.SubCategories[i].Revenue > stat.SubCategories[j].Revenue
		})
		out.Categories = append(out.Categories, stat)
	}
	sort.SliceStable(out.Categories, func(i, j int) bool {
		return out.Categories[i].Revenue > out.Categories[j].Revenue
	})

	out.Daily = sortedPeriods(daily)
	out.Monthly = sortedPeriods(monthly)
	return out
}

func bump(buckets map[string]*PeriodStat, period string, revenue float64) {
	stat, ok := buckets[period]
	if !ok {
		stat = &PeriodStat{Period: period}
		buckets[period] = stat
	}
	stat.Count++
	stat.Revenue += revenue
}

// sortedPeriods orders buckets by period key; the zero-padded formats make
// lexicographic order chronological.
func sortedPeriods(buckets map[string]*PeriodStat) []PeriodStat {
	out := make([]PeriodStat, 0, len(buckets))
	for _, stat := range buckets {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func sortByRevenueProducts(stats []ProductStat) {
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Revenue > stats[j].Revenue })
}

func truncateProducts(stats []ProductStat) []ProductStat {
	if len(stats) > topListSize {
		return stats[:topListSize]
	}
	return stats
}
