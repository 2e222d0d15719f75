package engine

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("plfli.engine")
