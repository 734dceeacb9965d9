// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package filereader

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsInCounter       otelmetric.Int64Counter
	rowsOutCounter      otelmetric.Int64Counter
	rowsRejectedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/epfrunner/internal/filereader")

	var err error
	rowsInCounter, err = meter.Int64Counter(
		"epfrunner.reader.rows.in",
		otelmetric.WithDescription("Number of data records read from the input stream"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.in counter: %w", err))
	}

	rowsOutCounter, err = meter.Int64Counter(
		"epfrunner.reader.rows.out",
		otelmetric.WithDescription("Number of typed rows output to downstream processing"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.out counter: %w", err))
	}

	rowsRejectedCounter, err = meter.Int64Counter(
		"epfrunner.reader.rows.rejected",
		otelmetric.WithDescription("Number of records rejected by readers, by reason"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.rejected counter: %w", err))
	}
}
