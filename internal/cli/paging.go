package cli

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/query"
)

// pageFlags are the list flags shared by every paginated command.
type pageFlags struct {
	search  string
	page    int
	perPage int
}

func (p *pageFlags) register(cmd *cobra.Command, withSearch bool) {
	if withSearch {
		cmd.Flags().StringVar(&p.search, "search", "", "Only show entries matching the search text")
	}
	cmd.Flags().IntVar(&p.page, "page", query.DefaultPage, "Page to show")
	cmd.Flags().IntVar(&p.perPage, "per-page", query.DefaultItemsPerPage, "Entries per page")
}

// values renders the flags the way a view's search parameters look.
func (p *pageFlags) values() url.Values {
	v := url.Values{}
	if p.search != "" {
		v.Set("search", p.search)
	}
	v.Set("page", strconv.Itoa(p.page))
	v.Set("itemsPerPage", strconv.Itoa(p.perPage))
	return v
}

// filters returns the normalized filters together with the view path that
// carries them.
func (p *pageFlags) filters(path string) (query.PageFilters, string, error) {
	v := p.values()
	f, err := query.FiltersFromValues(v)
	if err != nil {
		return query.PageFilters{}, "", err
	}
	return f, path + "?" + v.Encode(), nil
}
