package scoring

import "github.com/steve-waters-outstaffer/content-finder/internal/voc"

// FilterHighValue partitions enriched posts on the full-context relevance
// threshold. accepted and rejected together always equal the input; a post
// with no analysis cannot be accepted.
func FilterHighValue(posts []voc.Post, minScore float64) (accepted, rejected []voc.Post) {
	for _, post := range posts {
		if post.Analysis != nil && post.Analysis.RelevanceScore >= minScore {
			accepted = append(accepted, post)
		} else {
			rejected = append(rejected, post)
		}
	}
	return accepted, rejected
}
