package assethat

import (
	"fmt"
	"strings"
)

const loaderLABjs = "lab_js"

// labJSChain chains every URL through LABjs, waiting after each script so
// execution order is preserved while downloads run in parallel.
//
//	window.$LABinst=$LAB.
//	  script('/javascripts/app.js').wait().
//	  script('http://cdn.example.com/jquery.js').wait();
func labJSChain(urls []string) string {
	lines := make([]string, 0, len(urls)+1)
	lines = append(lines, "window.$LABinst=$LAB.")
	for i, u := range urls {
		end := "."
		if i == len(urls)-1 {
			end = ";"
		}
		lines = append(lines, fmt.Sprintf("  script('%s').wait()%s", jsQuote(u), end))
	}
	return strings.Join(lines, "\n")
}

func jsQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "</", `<\/`)
	return r.Replace(s)
}
