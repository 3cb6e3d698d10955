package core

import "strconv"

// ThreadIdentity formats a thread id the way scripts see it. Ids may be reused
// once a thread is gone.
func ThreadIdentity(id int64) string {
	return strconv.FormatInt(id, 10)
}

// CurrentThreadIdentity is ThreadIdentity(CurrentThreadID()).
func CurrentThreadIdentity() string {
	return ThreadIdentity(CurrentThreadID())
}
