package postgresttest

// InstallCampaignViews registers the campaign views computed from the base
// tables, joining in location and character names the way the database
// views do.
func (s *Server) InstallCampaignViews() {
	s.View("v_inventory", func(t map[string][]Row) []Row {
		return withLocation(t, t["inventory_current"])
	})
	s.View("v_inventory_history", func(t map[string][]Row) []Row {
		return withLocation(t, t["inventory_ledger"])
	})
	s.View("v_currency_history", func(t map[string][]Row) []Row {
		return withLocation(t, t["currency_ledger"])
	})
	s.View("v_currency_by_location", func(t map[string][]Row) []Row {
		rows := withLocation(t, t["currency_current"])
		for _, r := range rows {
			r["total_gp"] = totalGP(r)
		}
		return rows
	})
	s.View("v_total_wealth", func(t map[string][]Row) []Row {
		sum := Row{"copper": 0.0, "silver": 0.0, "electrum": 0.0, "gold": 0.0, "platinum": 0.0}
		for _, r := range t["currency_current"] {
			for k := range sum {
				if f, ok := r[k].(float64); ok {
					sum[k] = sum[k].(float64) + f
				}
			}
		}
		sum["total_gp"] = totalGP(sum)
		return []Row{sum}
	})
	s.View("v_characters", func(t map[string][]Row) []Row {
		return cloneRows(t["characters"])
	})
	for view, table := range map[string]string{
		"v_character_spells":     "character_spells",
		"v_character_feats":      "character_feats",
		"v_character_forms":      "character_forms",
		"v_character_companions": "character_companions",
	} {
		s.View(view, func(t map[string][]Row) []Row {
			return withCharacter(t, t[table])
		})
	}
}

func withCharacter(t map[string][]Row, rows []Row) []Row {
	names := make(map[any]any)
	for _, c := range t["characters"] {
		names[c["id"]] = c["name"]
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		c := cloneRow(r)
		c["character_name"] = names[r["character_id"]]
		out = append(out, c)
	}
	return out
}

func withLocation(t map[string][]Row, rows []Row) []Row {
	names := make(map[any]any)
	for _, loc := range t["storage_locations"] {
		names[loc["id"]] = loc["name"]
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		c := cloneRow(r)
		c["location_name"] = names[r["storage_location_id"]]
		out = append(out, c)
	}
	return out
}

func totalGP(r Row) float64 {
	f := func(k string) float64 {
		v, _ := r[k].(float64)
		return v
	}
	return f("copper")/100 + f("silver")/10 + f("electrum")/2 + f("gold") + f("platinum")*10
}
