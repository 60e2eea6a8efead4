package auth

import (
	"fmt"
	"io"
)

// WriteCookieGuide prints how to copy the sessionid and csrftoken cookies
// out of a logged-in browser.
func WriteCookieGuide(w io.Writer) {
	steps := []string{
		"Log in at https://www.instagram.com in a desktop browser.",
		"Open developer tools (F12, or Cmd+Option+I on macOS).",
		"Chrome/Edge: Application > Cookies. Firefox: Storage > Cookies.",
		"Select https://www.instagram.com and copy the values of sessionid and csrftoken.",
		"Paste them at the prompts below. Nothing is echoed.",
	}

	fmt.Fprintln(w, "Instagram session cookies are optional; they help the page and embed scrapers past the login wall.")
	for i, s := range steps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, s)
	}
	fmt.Fprintln(w, "Cookies expire when you log out of that browser.")
}
