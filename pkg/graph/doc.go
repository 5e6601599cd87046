// Package graph talks to the Facebook Graph API.
//
// Client issues single GET requests: it attaches the access token, retries
// connection failures with backoff and turns any non-2xx response into a
// status error carrying the response body. Fetcher walks paged results by
// following paging.next continuation references:
//
//	f := graph.NewFetcher(client)
//	for page, err := range f.Pages(ctx, graph.PlaceSearch(center, 4000)) {
//	    if err != nil {
//	        return err
//	    }
//	    places, bad := graph.Decode[graph.Place](page)
//	    ...
//	}
package graph
