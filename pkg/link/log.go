package link

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("javavm.link")
