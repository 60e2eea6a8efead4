// Package instagram holds the Instagram-facing primitives shared by every
// extraction strategy: reel URL parsing, endpoint builders, the Result type
// returned to callers, and a header-aware HTTP client.
//
//	ref, err := instagram.ParseReelURL("https://www.instagram.com/reel/C1a2b3/")
//	if err != nil {
//	    // errors.TypeOf(err) is invalid_domain or unrecognized_format
//	}
//	page, err := instagram.NewClient(15*time.Second, log).GetText(ctx, instagram.PostURL(ref.Shortcode))
package instagram
