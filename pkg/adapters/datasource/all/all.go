// Package all registers every connector. Import it for side effects.
package all

import (
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/api"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/file"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/simulated"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/sqlite"
)
