package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes instructions for obtaining a Graph API access token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "GRAPH API ACCESS TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "cityharvest reads public places, photos and albums through the Graph API.")
	fmt.Fprintln(w, "It needs an app access token, which has the form <app-id>|<app-secret>.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Open https://developers.facebook.com/apps and select your app.")
	fmt.Fprintln(w, "  2. Copy the App ID and App Secret from Settings > Basic.")
	fmt.Fprintln(w, "  3. Run: cityharvest token set")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The token can also be given with the %s environment variable\n", EnvAccessToken)
	fmt.Fprintln(w, "or graph.access_token in the config file.")
	fmt.Fprintln(w, rule)
}
